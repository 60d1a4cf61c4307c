// Package installer extracts the IDE installer archive, runs it unattended and
// collects its logs when it fails.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/execx"
	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// SetupPattern matches the installer binary inside the extracted archive.
const SetupPattern = "ccs_setup_*.bin"

// Options configures an unattended install.
type Options struct {
	// Setup is the installer binary.
	Setup string

	// Prefix is the installation prefix, for example /opt/ti.
	Prefix string

	// Components lists the product components to enable.
	Components []string

	// Display is exported as DISPLAY when set.
	Display string

	// Output receives the installer output and, on failure, the log dump.
	Output io.Writer
}

// Installer runs the vendor setup binary.
type Installer struct {
	runner execx.Runner
	logger zerolog.Logger
}

// New creates an Installer.
func New(runner execx.Runner, logger zerolog.Logger) *Installer {
	return &Installer{
		runner: runner,
		logger: telemetry.WithComponent(logger, "installer"),
	}
}

// FindSetup returns the single setup binary directly inside dir.
func FindSetup(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, SetupPattern))
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("expected exactly one %s in %s, found %d", SetupPattern, dir, len(matches))
	}
	return matches[0], nil
}

// InstallDir returns the product directory the installer creates under prefix.
func InstallDir(prefix string) string {
	return filepath.Join(prefix, "ccs")
}

// LogDir returns the directory the installer writes its logs to.
func LogDir(prefix string) string {
	return filepath.Join(InstallDir(prefix), "install_logs")
}

// Launcher returns the path of the ccstudio executable under prefix.
func Launcher(prefix string) string {
	return filepath.Join(InstallDir(prefix), "eclipse", "ccstudio")
}

// Run runs the installer unattended. When it fails, every log file under
// LogDir is written to opts.Output before the error is returned.
func (i *Installer) Run(ctx context.Context, opts Options) error {
	if opts.Setup == "" || opts.Prefix == "" {
		return fmt.Errorf("setup and prefix are required")
	}

	args := []string{
		"--unattendedmodeui", "none",
		"--mode", "unattended",
	}
	if len(opts.Components) > 0 {
		args = append(args, "--enable-components", strings.Join(opts.Components, ","))
	}
	args = append(args, "--prefix", opts.Prefix)

	cmd := execx.Command{
		Name:   opts.Setup,
		Args:   args,
		Stdout: opts.Output,
		Stderr: opts.Output,
	}
	if opts.Display != "" {
		cmd.Env = []string{"DISPLAY=" + opts.Display}
	}

	i.logger.Info().
		Str("setup", opts.Setup).
		Str("prefix", opts.Prefix).
		Strs("components", opts.Components).
		Msg("Running installer")

	_, err := i.runner.Run(ctx, cmd)
	if err == nil {
		i.logger.Info().Msg("Installer finished")
		return nil
	}

	logDir := LogDir(opts.Prefix)
	i.logger.Error().Err(err).Str("log_dir", logDir).Msg("Installer failed, dumping install logs")

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	if dumpErr := DumpLogs(logDir, out); dumpErr != nil {
		i.logger.Warn().Err(dumpErr).Msg("Failed to dump install logs")
	}

	return fmt.Errorf("installer failed: %w", err)
}

// Link points link at target, replacing an existing symlink.
func Link(target, link string) error {
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%s exists and is not a symlink", link)
		}
		if err := os.Remove(link); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}
