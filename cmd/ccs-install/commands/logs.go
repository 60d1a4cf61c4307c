package commands

import (
	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/config"
	"github.com/ccsimage/ccs-install/pkg/installer"
)

func newLogsCommand() *cobra.Command {
	var (
		follow bool
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print or follow the installer logs",
		Long: `Print every file under <prefix>/ccs/install_logs, or with --follow, stream
new content as the installer writes it until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, func(s *config.Settings) {
				if prefix != "" {
					s.Prefix = prefix
				}
			})
			if err != nil {
				return err
			}
			defer a.close()

			dir := installer.LogDir(a.settings.Prefix)
			if follow {
				return installer.NewFollower(dir, a.stdout, a.logger).Follow(cmd.Context())
			}
			return installer.DumpLogs(dir, a.stdout)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new log content")
	cmd.Flags().StringVar(&prefix, "prefix", "", "installation prefix")

	return cmd
}
