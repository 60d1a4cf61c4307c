package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit     int
		runID     string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled reconciliation runs",
		Example: `  ccs-install history --journal /var/lib/ccs/runs.db
  ccs-install history --journal /var/lib/ccs/runs.db --run 0b6f3c2e-...
  ccs-install history --journal /var/lib/ccs/runs.db --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if a.journal == nil {
				return fmt.Errorf("%w: no journal configured (use --journal or journal: in the settings file)", errUsage)
			}
			ctx := cmd.Context()

			if olderThan > 0 {
				n, err := a.journal.DeleteRunsBefore(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				a.logger.Info().Int64("runs", n).Dur("older_than", olderThan).Msg("Pruned journal")
				return nil
			}

			if runID != "" {
				run, err := a.journal.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				actions, err := a.journal.ListActions(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(a.stdout, map[string]any{"run": run, "actions": actions})
				}
				printActions(a.stdout, run, actions)
				return nil
			}

			runs, err := a.journal.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(a.stdout, runs)
			}
			printRuns(a.stdout, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the actions of one run")
	cmd.Flags().DurationVar(&olderThan, "prune", 0, "delete runs older than this instead of listing")

	return cmd
}
