package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newInvoicesCommand(opts *RootOptions, connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Invoice maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Mark pending invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, connect, func(ctx context.Context, rt *Runtime) error {
				n, err := rt.Invoices.SweepOverdue(ctx)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]int64{"updated": n})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue\n", n)
				return err
			})
		},
	})
	return cmd
}
