// Package director drives the IDE's p2 director application to list, install
// and uninstall installable units.
package director

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/engine"
	"github.com/ccsimage/ccs-install/pkg/execx"
	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

const (
	// Application is the Equinox application id of the p2 director.
	Application = "org.eclipse.equinox.p2.director"

	// DefaultRepository is the vendor update site for compiler IUs.
	DefaultRepository = "http://software-dl.ti.com/dsps/dsps_public_sw/sdo_ccstudio/codegen/Updates/p2linux/"

	// UpdateProcessPattern matches the updater the IDE spawns after an install.
	UpdateProcessPattern = "^ccs_update"
)

// ProcessWaiter waits for a process matching pattern to appear and exit.
type ProcessWaiter interface {
	Wait(ctx context.Context, pattern string) error
}

// Config configures a Director.
type Config struct {
	// Launcher is the path to the ccstudio executable.
	Launcher string

	// Repository is the update site used for installs.
	Repository string

	// Display is exported as DISPLAY for every invocation when set.
	Display string

	// Output receives the director's streamed output for install and
	// uninstall. Nil discards it.
	Output io.Writer

	// WaitForUpdate waits for the post-install updater process when set.
	WaitForUpdate ProcessWaiter

	// UpdateTimeout bounds WaitForUpdate.
	UpdateTimeout time.Duration
}

// Director implements engine.Querier and engine.Actuator on top of the p2
// director command line.
type Director struct {
	config Config
	runner execx.Runner
	logger zerolog.Logger
}

var (
	_ engine.Querier  = (*Director)(nil)
	_ engine.Actuator = (*Director)(nil)
)

// New creates a Director.
func New(cfg Config, runner execx.Runner, logger zerolog.Logger) (*Director, error) {
	if cfg.Launcher == "" {
		return nil, fmt.Errorf("launcher path is required")
	}
	if cfg.Repository == "" {
		cfg.Repository = DefaultRepository
	}
	if cfg.UpdateTimeout == 0 {
		cfg.UpdateTimeout = 10 * time.Minute
	}
	return &Director{
		config: cfg,
		runner: runner,
		logger: telemetry.WithComponent(logger, "director"),
	}, nil
}

// ListInstalled runs -listInstalledRoots and returns its output lines
// unfiltered.
func (d *Director) ListInstalled(ctx context.Context) ([]string, error) {
	result, err := d.runner.Run(ctx, d.command(true, "-listInstalledRoots"))
	if err != nil {
		return nil, fmt.Errorf("failed to list installed roots: %w", err)
	}
	return splitLines(result.Stdout), nil
}

// Apply installs or uninstalls a single unit.
func (d *Director) Apply(ctx context.Context, action engine.Action) error {
	if err := action.Direction.Validate(); err != nil {
		return err
	}

	var args []string
	switch action.Direction {
	case engine.DirectionInstall:
		args = []string{"-repository", d.config.Repository, "-installIUs", action.Unit.String()}
	case engine.DirectionUninstall:
		args = []string{"-uninstallIUs", action.Unit.String()}
	}

	logger := telemetry.WithUnit(d.logger, action.Unit.String())
	logger.Info().
		Str("direction", string(action.Direction)).
		Msg("Invoking p2 director")

	if _, err := d.runner.Run(ctx, d.command(false, args...)); err != nil {
		return fmt.Errorf("failed to %s %s: %w", action.Direction, action.Unit, err)
	}

	if action.Direction == engine.DirectionInstall && d.config.WaitForUpdate != nil {
		waitCtx, cancel := context.WithTimeout(ctx, d.config.UpdateTimeout)
		defer cancel()
		if err := d.config.WaitForUpdate.Wait(waitCtx, UpdateProcessPattern); err != nil {
			return fmt.Errorf("waiting for updater after installing %s: %w", action.Unit, err)
		}
	}

	return nil
}

func (d *Director) command(capture bool, extras ...string) execx.Command {
	args := append([]string{"-noSplash", "-application", Application}, extras...)
	cmd := execx.Command{
		Name:    d.config.Launcher,
		Args:    args,
		Capture: capture,
	}
	if !capture {
		cmd.Stdout = d.config.Output
		cmd.Stderr = d.config.Output
	}
	if d.config.Display != "" {
		cmd.Env = []string{"DISPLAY=" + d.config.Display}
	}
	return cmd
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
