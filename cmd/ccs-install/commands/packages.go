package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/pkgtrace"
)

func newPackagesCommand() *cobra.Command {
	var (
		traceFile string
		excludes  []string
	)

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List the distribution packages an strace log touched",
		Long: `Read strace output and print the sorted set of dpkg packages owning the
files that were opened successfully. Files under the installation prefix and
home directories are ignored.`,
		Example: `  strace -f -e trace=open,openat -o trace.log /opt/ti/ccs/eclipse/ccstudio ...
  ccs-install packages --trace trace.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()

			var in io.Reader = cmd.InOrStdin()
			if traceFile != "" && traceFile != "-" {
				f, err := os.Open(traceFile)
				if err != nil {
					return fmt.Errorf("%w: %w", errUsage, err)
				}
				defer f.Close()
				in = f
			}

			packages, err := pkgtrace.NewResolver(a.runner, excludes, a.logger).Packages(cmd.Context(), in)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(a.stdout, packages)
			}
			fmt.Fprintln(a.stdout, strings.Join(packages, " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&traceFile, "trace", "-", "strace output file, - for stdin")
	cmd.Flags().StringSliceVar(&excludes, "exclude", pkgtrace.DefaultExcludes, "path prefixes to ignore")

	return cmd
}
