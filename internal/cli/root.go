package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// RosterMaintainer audits and rewrites class rosters from Student.Class.
type RosterMaintainer interface {
	Audit(ctx context.Context) ([]models.RosterDrift, error)
	Repair(ctx context.Context) ([]models.RosterDrift, error)
}

// InvoiceSweeper marks overdue invoices.
type InvoiceSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// TokenIssuer signs access tokens for existing users.
type TokenIssuer interface {
	IssueTokenForUser(ctx context.Context, userID string) (string, time.Time, error)
}

// ActivityRecorder logs administrative actions.
type ActivityRecorder interface {
	Record(ctx context.Context, actor models.Actor, action string, details map[string]interface{})
}

// Runtime is the set of services the commands operate on.
type Runtime struct {
	Roster   RosterMaintainer
	Invoices InvoiceSweeper
	Tokens   TokenIssuer
	Activity ActivityRecorder
}

// Connector builds a Runtime on demand so that --help and flag errors never
// touch the database. The returned func releases connections.
type Connector func(ctx context.Context) (*Runtime, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the ledgerctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Maintenance tasks for the school ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newRosterCommand(opts, connect))
	cmd.AddCommand(newInvoicesCommand(opts, connect))
	cmd.AddCommand(newTokenCommand(opts, connect))
	return cmd
}

func withRuntime(cmd *cobra.Command, connect Connector, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, release, err := connect(ctx)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, rt)
}
