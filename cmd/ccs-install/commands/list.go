package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/config"
	"github.com/ccsimage/ccs-install/pkg/engine"
)

func newListCommand() *cobra.Command {
	var units unitFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed root IUs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, func(s *config.Settings) { units.apply(cmd, s) })
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.director()
			if err != nil {
				return err
			}
			lines, err := d.ListInstalled(cmd.Context())
			if err != nil {
				return engine.NewExternalQueryError("failed to list installed units", err)
			}
			installed, err := engine.ParseInstalled(lines)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(a.stdout, installed.Strings())
			}
			for _, u := range installed.Strings() {
				fmt.Fprintln(a.stdout, u)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&units.launcher, "ccstudio", "", "path to the ccstudio executable")
	cmd.Flags().StringVar(&units.display, "display", "", "X display for the director")

	return cmd
}
