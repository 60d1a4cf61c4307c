// Package display runs a virtual X display so the IDE's installer and
// director can run headless.
package display

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/execx"
	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// Options configures the virtual display.
type Options struct {
	// Display is the X display name, for example ":0".
	Display string

	// Screen is the Xvfb screen geometry and depth, for example "1024x768x16".
	Screen string

	// VNC also starts x11vnc attached to the display.
	VNC bool

	// Output receives both processes' output. Nil discards it.
	Output io.Writer
}

// DefaultOptions returns the display used for image builds.
func DefaultOptions() Options {
	return Options{
		Display: ":0",
		Screen:  "1024x768x16",
		VNC:     true,
	}
}

// Display is a running Xvfb server and optional VNC bridge.
type Display struct {
	name      string
	processes []execx.Process
	logger    zerolog.Logger
}

// Start launches Xvfb and then x11vnc. If x11vnc fails to start, Xvfb is
// stopped before returning.
func Start(ctx context.Context, starter execx.Starter, opts Options, logger zerolog.Logger) (*Display, error) {
	if opts.Display == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if opts.Screen == "" {
		opts.Screen = DefaultOptions().Screen
	}

	d := &Display{
		name:   opts.Display,
		logger: telemetry.WithComponent(logger, "display").With().Str("display", opts.Display).Logger(),
	}

	xvfb, err := starter.Start(ctx, execx.Command{
		Name:   "Xvfb",
		Args:   []string{opts.Display, "-screen", "0", opts.Screen},
		Stdout: opts.Output,
		Stderr: opts.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Xvfb: %w", err)
	}
	d.processes = append(d.processes, xvfb)
	d.logger.Info().Int("pid", xvfb.Pid()).Str("screen", opts.Screen).Msg("Started Xvfb")

	if opts.VNC {
		vnc, err := starter.Start(ctx, execx.Command{
			Name:   "x11vnc",
			Args:   []string{"-display", opts.Display},
			Stdout: opts.Output,
			Stderr: opts.Output,
		})
		if err != nil {
			_ = d.Stop()
			return nil, fmt.Errorf("failed to start x11vnc: %w", err)
		}
		d.processes = append(d.processes, vnc)
		d.logger.Info().Int("pid", vnc.Pid()).Msg("Started x11vnc")
	}

	return d, nil
}

// Name returns the display name.
func (d *Display) Name() string {
	return d.name
}

// Stop kills the processes in reverse start order. It is safe to call more
// than once.
func (d *Display) Stop() error {
	var errs []error
	for i := len(d.processes) - 1; i >= 0; i-- {
		p := d.processes[i]
		if err := p.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("kill pid %d: %w", p.Pid(), err))
			continue
		}
		// The exit status of a killed process is expected to be an error.
		_ = p.Wait()
	}
	d.processes = nil
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	d.logger.Info().Msg("Stopped virtual display")
	return nil
}
