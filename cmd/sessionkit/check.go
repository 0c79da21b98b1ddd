package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	checkProbe   bool
	checkRefresh bool
)

var checkCmd = &cobra.Command{
	Use:   "check [role]",
	Short: "Check whether the session cookie of a role is still usable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		role := roleArg(args)
		out := cmd.OutOrStdout()

		if checkRefresh {
			token, err := kit.Ensure(ctx, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "valid: %s\n", token)
			return nil
		}

		token, ok, err := kit.Resolve(ctx, role)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no session cookie available for %s", role)
		}
		if !kit.Checker().Valid(&token, role) {
			return fmt.Errorf("malformed session cookie: %s", token)
		}
		if checkProbe && !kit.Checker().Probe(ctx, token) {
			return fmt.Errorf("session cookie not accepted by %s: %s", settings.BaseURL, token)
		}

		fmt.Fprintf(out, "valid: %s\n", token)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkProbe, "probe", true, "Ask the site whether the cookie is accepted")
	checkCmd.Flags().BoolVar(&checkRefresh, "refresh", false, "Log in again if the cookie is not usable")
}
