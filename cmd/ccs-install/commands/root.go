package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/engine"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	jsonOutput    bool
	logFormat     string
	journalPath   string
	metricsFile   string
	traceExporter string

	// Set by Execute
	buildVersion = "dev"
)

// errUsage marks errors caused by invalid input rather than a failed run.
var errUsage = errors.New("usage error")

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error to the process exit status: 2 for invalid input,
// 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), engine.IsMalformedUnit(err):
		return 2
	default:
		return 1
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ccs-install",
		Short: "Unattended Code Composer Studio installs for container images",
		Long: `ccs-install provisions Code Composer Studio inside an image build and
reconciles its installable units (IUs) against a requested set.

It:
  - Extracts the installer archive and runs it unattended under a virtual display
  - Lists installed root IUs through the p2 director
  - Uninstalls installed IUs that conflict with a requested version
  - Installs requested IUs that are missing
  - Records every run in an optional SQLite journal`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "SQLite run journal path")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter: none, stdout or otlp")

	// Add subcommands
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newPackagesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWaitProcessCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}
