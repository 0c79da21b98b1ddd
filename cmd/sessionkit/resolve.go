package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveShow bool

var resolveCmd = &cobra.Command{
	Use:   "resolve [role]",
	Short: "Resolve a session cookie from environment, cache or login",
	Long: `Resolve a session cookie for a role. Sources are tried in order: SESSION_COOKIE_{ROLE}
and SESSION_COOKIE, {role}_session.txt and {role}_cookies.json in COOKIE_DIR, and finally a
login with the credential configured for the role. The role defaults to TARGET_USER.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := roleArg(args)

		token, ok, err := kit.Resolve(cmd.Context(), role)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no session cookie available for %s", role)
		}

		if resolveShow {
			fmt.Fprintln(cmd.OutOrStdout(), token.Value)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), token.String())
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveShow, "show", false, "Print only the unmasked cookie value")
}

func roleArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return settings.TargetUser
}
