package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/config"
	"github.com/ccsimage/ccs-install/pkg/display"
)

func newReconcileCommand() *cobra.Command {
	var (
		units          unitFlags
		dryRun         bool
		virtualDisplay bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile installed IUs against the requested set",
		Long: `Reconcile the IUs of an existing installation.

Installed IUs that share name and major.minor with a requested IU, but differ
in the full version, are uninstalled first together with any explicitly
requested uninstalls. Requested IUs that are not installed are then installed.
The run stops at the first failed action; nothing is rolled back.`,
		Example: `  # Replace any installed 18.12.x compiler with 18.12.4
  ccs-install reconcile --install-iu com.ti.cgt.c2000.8.linux/18.12.4

  # Against a non-default installation, recording the run
  ccs-install reconcile --ccstudio /srv/ti/ccs/eclipse/ccstudio --journal /var/lib/ccs/runs.db \
    --install-iu com.ti.cgt.c2000.8.linux/18.12.4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, func(s *config.Settings) { units.apply(cmd, s) })
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if virtualDisplay {
				stop, err := a.startDisplay(ctx)
				if err != nil {
					return err
				}
				defer stop()
			}

			return a.reconcile(ctx, dryRun)
		},
	}

	units.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and print the plan without changing anything")
	cmd.Flags().BoolVar(&virtualDisplay, "virtual-display", false, "run under a fresh Xvfb display")

	return cmd
}

func newPlanCommand() *cobra.Command {
	var units unitFlags

	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Print the reconciliation plan without executing it",
		Example: `  ccs-install plan --install-iu com.ti.cgt.c2000.8.linux/18.12.4 --json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, func(s *config.Settings) { units.apply(cmd, s) })
			if err != nil {
				return err
			}
			defer a.close()

			return a.reconcile(cmd.Context(), true)
		},
	}

	units.register(cmd)

	return cmd
}

// startDisplay starts the configured virtual display, points the installer
// and the director at it, and returns its stop function.
func (a *app) startDisplay(ctx context.Context) (func(), error) {
	d, err := display.Start(ctx, a.runner, display.Options{
		Display: a.settings.Display.Name,
		Screen:  a.settings.Display.Screen,
		VNC:     a.settings.Display.VNC,
		Output:  a.stderr,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.settings.Display.Name = d.Name()
	return func() {
		if err := d.Stop(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to stop virtual display")
		}
	}, nil
}
