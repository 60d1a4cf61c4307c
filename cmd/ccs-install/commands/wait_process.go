package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/procwatch"
)

func newWaitProcessCommand() *cobra.Command {
	var (
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait-process PATTERN",
		Short: "Wait for a matching process to start and exit",
		Long: `Poll the process table until a process whose name matches the regular
expression PATTERN appears, then until it exits. Useful for the background
updater the IDE spawns after installing IUs.`,
		Example: `  ccs-install wait-process '^ccs_update' --timeout 30m`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			a.logger.Info().Str("pattern", args[0]).Msg("Waiting for process")
			if err := procwatch.NewWatcher(procwatch.ProcLister{}, interval).Wait(ctx, args[0]); err != nil {
				return err
			}
			a.logger.Info().Str("pattern", args[0]).Dur("elapsed", time.Since(start)).Msg("Process exited")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "polling interval")

	return cmd
}
