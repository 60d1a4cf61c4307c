package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ccsimage/ccs-install/pkg/config"
	"github.com/ccsimage/ccs-install/pkg/director"
	"github.com/ccsimage/ccs-install/pkg/engine"
	"github.com/ccsimage/ccs-install/pkg/execx"
	"github.com/ccsimage/ccs-install/pkg/procwatch"
	"github.com/ccsimage/ccs-install/pkg/stores"
	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// unitFlags are the request flags shared by install, reconcile and plan.
type unitFlags struct {
	install   []string
	uninstall []string
	launcher  string
	display   string
}

func (f *unitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.install, "install-iu", nil, "IU to install, name/version (repeatable, env INSTALL_IUS)")
	cmd.Flags().StringArrayVar(&f.uninstall, "uninstall-iu", nil, "IU to uninstall, name/version (repeatable, env UNINSTALL_IUS)")
	cmd.Flags().StringVar(&f.launcher, "ccstudio", "", "path to the ccstudio executable")
	cmd.Flags().StringVar(&f.display, "display", "", "X display for the director and installer")
}

func (f *unitFlags) apply(cmd *cobra.Command, s *config.Settings) {
	if cmd.Flags().Changed("install-iu") {
		s.Install = f.install
	}
	if cmd.Flags().Changed("uninstall-iu") {
		s.Uninstall = f.uninstall
	}
	if f.launcher != "" {
		s.Launcher = f.launcher
	}
	if f.display != "" {
		s.Display.Name = f.display
	}
}

var lookupEnv = os.LookupEnv

// loadSettings layers defaults, the settings file, the environment, global
// flags and finally command flags, then validates the result.
func loadSettings(cmd *cobra.Command, lookup func(string) (string, bool), overlay func(*config.Settings)) (*config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	s.ApplyEnv(lookup)

	if verbose {
		s.Log.Level = "debug"
	}
	if logFormat != "" {
		s.Log.Format = logFormat
	}
	if journalPath != "" {
		s.Journal = journalPath
	}
	if metricsFile != "" {
		s.MetricsFile = metricsFile
	}
	if traceExporter != "" {
		s.Trace.Exporter = traceExporter
	}
	if overlay != nil {
		overlay(s)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	return s, nil
}

// app holds everything a command needs once settings are loaded.
type app struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	logger   zerolog.Logger
	runner   *execx.CommandRunner
	journal  *stores.SQLiteStore
	stdout   io.Writer
	stderr   io.Writer
}

func newApp(cmd *cobra.Command, overlay func(*config.Settings)) (*app, error) {
	s, err := loadSettings(cmd, lookupEnv, overlay)
	if err != nil {
		return nil, err
	}

	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	cfg.Logging.Level = s.Log.Level
	cfg.Logging.Format = s.Log.Format
	cfg.Logging.Output = cmd.ErrOrStderr()
	cfg.Tracing.Exporter = s.Trace.Exporter
	cfg.Tracing.Endpoint = s.Trace.Endpoint
	cfg.Tracing.Insecure = s.Trace.Insecure
	cfg.Metrics.TextfilePath = s.MetricsFile

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	a := &app{
		settings: s,
		tel:      tel,
		logger:   tel.Logger,
		runner:   execx.NewCommandRunner(tel.Logger),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}

	if s.Journal != "" {
		journal, err := stores.Open(cmd.Context(), s.Journal)
		if err != nil {
			_ = tel.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = journal
	}

	return a, nil
}

// close flushes telemetry and closes the journal. It runs on a fresh context
// so that an interrupted command still writes its metrics.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	return errors.Join(errs...)
}

func (a *app) director() (*director.Director, error) {
	cfg := director.Config{
		Launcher:   a.settings.LauncherPath(),
		Repository: a.settings.Repository,
		Display:    a.settings.Display.Name,
		Output:     a.stderr,
	}
	if a.settings.WaitForUpdate {
		cfg.WaitForUpdate = procwatch.NewWatcher(procwatch.ProcLister{}, 0)
		cfg.UpdateTimeout = a.settings.UpdateTimeout
	}
	return director.New(cfg, a.runner, a.logger)
}

func (a *app) reconciler(d *director.Director) *engine.Reconciler {
	opts := []engine.Option{
		engine.WithObserver(a.tel.Metrics),
		engine.WithTracer(a.tel.Tracer.Tracer()),
	}
	if a.journal != nil {
		opts = append(opts, engine.WithJournal(a.journal))
	}
	return engine.NewReconciler(d, d, a.logger, opts...)
}

// reconcile runs one reconciliation and prints its result, including the
// partial result of a failed run.
func (a *app) reconcile(ctx context.Context, dryRun bool) error {
	d, err := a.director()
	if err != nil {
		return err
	}

	result, err := a.reconciler(d).Reconcile(ctx, engine.Request{
		Install:   a.settings.Install,
		Uninstall: a.settings.Uninstall,
		DryRun:    dryRun,
	})
	if result != nil {
		if perr := printResult(a.stdout, result, jsonOutput); perr != nil {
			a.logger.Warn().Err(perr).Msg("Failed to print result")
		}
	}
	if err != nil {
		var engErr *engine.Error
		if errors.As(err, &engErr) && len(engErr.Completed) > 0 {
			logger := telemetry.WithRunID(a.logger, runID(result))
			logger.Warn().
				Int("completed", len(engErr.Completed)).
				Msg("Run stopped after partial progress; completed actions were not rolled back")
		}
	}
	return err
}

func runID(r *engine.Result) string {
	if r == nil {
		return ""
	}
	return r.RunID
}
