package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/spf13/cobra"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
)

var (
	loginUser     string
	loginRelogin  bool
	loginAttempts uint
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in a role and cache its session cookie",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		role := loginUser
		if role == "" {
			role = settings.TargetUser
		}
		out := cmd.OutOrStdout()

		if !loginRelogin {
			if value, err := kit.Store().ReadText(role); err == nil && cookie.ValidateCookie(value) {
				fmt.Fprintf(out, "%s: cached session cookie %s reused\n", role, cookie.Mask(value))
				return nil
			}
		}

		// Browser logins are flaky on the first page load, so they get a few attempts
		attempts := uint(1)
		if settings.AuthMode == config.AuthModeBrowser {
			attempts = loginAttempts
		}

		var result login.Result
		err := retry.New(
			retry.Attempts(attempts),
			retry.Delay(2*time.Second),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
		).Do(func() error {
			var err error
			result, err = kit.Login(ctx, role)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !result.Success {
				return errors.New(result.Message)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("login %s: %w", role, err)
		}

		fmt.Fprintf(out, "%s: logged in, session cookie %s cached in %s\n", role, cookie.Mask(result.SessionToken), kit.Store().TextPath(role))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Role to log in (default TARGET_USER)")
	loginCmd.Flags().BoolVar(&loginRelogin, "relogin", true, "Log in even if a cached session cookie exists")
	loginCmd.Flags().UintVar(&loginAttempts, "attempts", 3, "Attempts for browser logins")
}
