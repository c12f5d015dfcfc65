package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// ErrRosterDrift is returned by `roster check --strict` when any class is out of sync.
var ErrRosterDrift = errors.New("class rosters out of sync")

func newRosterCommand(opts *RootOptions, connect Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Compare class rosters with student classes",
	}

	var strict bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Report classes whose roster disagrees with Student.Class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, connect, func(ctx context.Context, rt *Runtime) error {
				drift, err := rt.Roster.Audit(ctx)
				if err != nil {
					return err
				}
				if err := writeDrift(cmd.OutOrStdout(), opts.Format, drift); err != nil {
					return err
				}
				if strict && len(drift) > 0 {
					return fmt.Errorf("%w: %d class(es)", ErrRosterDrift, len(drift))
				}
				return nil
			})
		},
	}
	check.Flags().BoolVar(&strict, "strict", false, "exit non-zero when drift is found")

	repair := &cobra.Command{
		Use:   "repair",
		Short: "Rewrite drifted rosters from Student.Class",
		Long: `Rewrite every drifted class roster from the students whose class field
names it. Use after an interrupted transfer or enrollment that was not resubmitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, connect, func(ctx context.Context, rt *Runtime) error {
				repaired, err := rt.Roster.Repair(ctx)
				if len(repaired) > 0 && rt.Activity != nil {
					names := make([]string, 0, len(repaired))
					for _, d := range repaired {
						names = append(names, d.ClassName)
					}
					rt.Activity.Record(ctx, models.SystemActor, models.ActivityRosterRepaired, map[string]interface{}{"classes": names})
				}
				if werr := writeDrift(cmd.OutOrStdout(), opts.Format, repaired); werr != nil && err == nil {
					err = werr
				}
				return err
			})
		},
	}

	cmd.AddCommand(check, repair)
	return cmd
}
