package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCommand(opts *RootOptions, connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "mint <user-id>",
		Short: "Sign an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, connect, func(ctx context.Context, rt *Runtime) error {
				token, expiresAt, err := rt.Tokens.IssueTokenForUser(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"access_token": token,
						"expires_at":   expiresAt.Format(time.RFC3339),
					})
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	})
	return cmd
}
