package commands

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccsimage/ccs-install/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var units unitFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate settings and requested IUs",
		Long: `Load settings from defaults, the settings file, the environment and flags,
validate them, and print the effective result. Nothing is executed.`,
		Example: `  ccs-install validate --config ccs.yaml
  INSTALL_IUS="a/1.2 b/3" ccs-install validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, lookupEnv, func(s *config.Settings) { units.apply(cmd, s) })
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, s)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(s); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	units.register(cmd)

	return cmd
}
