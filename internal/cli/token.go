package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCommand(e *env) *cobra.Command {
	var (
		user       string
		printToken bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Capture a bearer token through the browser SSO and verify it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			token, err := e.ssoToken(ctx, user)
			if err != nil {
				return err
			}
			payload, err := e.browser().Verify(ctx, token)
			if err != nil {
				return err
			}
			if printToken {
				fmt.Fprintln(e.out, token)
			}
			enc := json.NewEncoder(e.out)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "SSO user (prompted when empty)")
	cmd.Flags().BoolVar(&printToken, "print-token", false, "print the captured token before the ranking payload")
	return cmd
}
