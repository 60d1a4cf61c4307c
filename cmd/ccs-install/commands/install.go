package commands

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ccsimage/ccs-install/pkg/config"
	"github.com/ccsimage/ccs-install/pkg/installer"
)

func newInstallCommand() *cobra.Command {
	var (
		units       unitFlags
		tarball     string
		prefix      string
		workDir     string
		keepWorkDir bool
		noDisplay   bool
		followLogs  bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install CCS from its installer archive and reconcile IUs",
		Long: `Provision Code Composer Studio end to end:

  1. Extract the installer archive (tar or tar.gz with one top-level directory)
  2. Start Xvfb and x11vnc
  3. Run ccs_setup_*.bin unattended with the configured components
  4. Link the ccstudio launcher
  5. Reconcile the requested IUs through the p2 director
  6. Stop the display and remove the extracted installer

Requested IUs are validated before anything is extracted.`,
		Example: `  ccs-install install --tarball CCS9.3.0.00012_linux-x64.tar.gz \
    --install-iu com.ti.cgt.c2000.8.linux/18.12.4

  # IUs from the environment, as in a Dockerfile
  INSTALL_IUS="com.ti.cgt.c2000.8.linux/18.12.4" ccs-install install --tarball ccs.tar.gz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, func(s *config.Settings) {
				units.apply(cmd, s)
				if prefix != "" {
					s.Prefix = prefix
				}
				if workDir != "" {
					s.WorkDir = workDir
				}
			})
			if err != nil {
				return err
			}
			defer a.close()

			return a.install(cmd.Context(), installRun{
				tarball:     tarball,
				keepWorkDir: keepWorkDir,
				display:     !noDisplay,
				followLogs:  followLogs,
			})
		},
	}

	units.register(cmd)
	cmd.Flags().StringVar(&tarball, "tarball", "", "installer archive (required)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "installation prefix (env CCS_PREFIX, default /opt/ti)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory to extract the installer into (default: a temporary directory)")
	cmd.Flags().BoolVar(&keepWorkDir, "keep-work-dir", false, "keep the extracted installer")
	cmd.Flags().BoolVar(&noDisplay, "no-display", false, "do not start Xvfb/x11vnc (use an existing DISPLAY)")
	cmd.Flags().BoolVar(&followLogs, "follow-logs", false, "stream installer logs while it runs")
	_ = cmd.MarkFlagRequired("tarball")

	return cmd
}

type installRun struct {
	tarball     string
	keepWorkDir bool
	display     bool
	followLogs  bool
}

func (a *app) install(ctx context.Context, run installRun) (err error) {
	s := a.settings

	ctx, span := a.tel.Tracer.Start(ctx, "install.run",
		attribute.String("install.tarball", run.tarball),
		attribute.String("install.prefix", s.Prefix),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := os.Stat(run.tarball); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	workDir := s.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "ccs-install-*")
		if err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
		workDir = dir
	}
	if !run.keepWorkDir {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				a.logger.Warn().Err(err).Str("dir", workDir).Msg("Failed to remove work directory")
			}
		}()
	}

	a.logger.Info().Str("tarball", run.tarball).Str("dir", workDir).Msg("Extracting installer")
	extractCtx, extractSpan := a.tel.Tracer.Start(ctx, "install.extract")
	base, err := installer.Extract(extractCtx, run.tarball, workDir)
	extractSpan.End()
	if err != nil {
		return fmt.Errorf("failed to extract installer: %w", err)
	}

	setup, err := installer.FindSetup(base)
	if err != nil {
		return err
	}

	if run.display {
		stop, err := a.startDisplay(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	setupCtx, setupSpan := a.tel.Tracer.Start(ctx, "install.setup", attribute.String("install.setup", setup))
	err = a.runInstaller(setupCtx, setup, run.followLogs)
	setupSpan.End()
	if err != nil {
		return err
	}

	launcher := s.LauncherPath()
	if s.Link != "" {
		if err := installer.Link(launcher, s.Link); err != nil {
			return fmt.Errorf("failed to link launcher: %w", err)
		}
		a.logger.Info().Str("link", s.Link).Str("target", launcher).Msg("Linked launcher")
	}

	return a.reconcile(ctx, false)
}

func (a *app) runInstaller(ctx context.Context, setup string, followLogs bool) error {
	s := a.settings
	opts := installer.Options{
		Setup:      setup,
		Prefix:     s.Prefix,
		Components: s.Components,
		Display:    s.Display.Name,
		Output:     a.stderr,
	}

	if !followLogs {
		return installer.New(a.runner, a.logger).Run(ctx, opts)
	}

	followCtx, stopFollowing := context.WithCancel(ctx)
	follower := installer.NewFollower(installer.LogDir(s.Prefix), a.stderr, a.logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := follower.Follow(followCtx); err != nil {
			a.logger.Warn().Err(err).Msg("Log follower stopped")
		}
	}()

	err := installer.New(a.runner, a.logger).Run(ctx, opts)
	stopFollowing()
	wg.Wait()
	return err
}
