// Package execx runs external commands for the provisioning collaborators.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// Command describes a process to run.
type Command struct {
	// Name is the executable path or name looked up in PATH.
	Name string

	// Args are the arguments, not including Name.
	Args []string

	// Env holds extra KEY=VALUE entries appended to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Capture collects stdout into Result.Stdout instead of streaming it.
	Capture bool

	// Stdout and Stderr receive streamed output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Process is a started, long-running command.
type Process interface {
	Pid() int
	Kill() error
	Wait() error
}

// Starter starts a command without waiting for it.
type Starter interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// CommandRunner runs commands with os/exec.
type CommandRunner struct {
	logger zerolog.Logger
}

// NewCommandRunner creates a runner that logs every command at debug level.
func NewCommandRunner(logger zerolog.Logger) *CommandRunner {
	return &CommandRunner{logger: telemetry.WithComponent(logger, "exec")}
}

// Run executes cmd and waits for it. A non-zero exit is returned as *ExitError
// together with the populated Result.
func (r *CommandRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("command is required")
	}

	c := r.build(ctx, cmd)

	var stdout, stderr bytes.Buffer
	switch {
	case cmd.Capture:
		c.Stdout = &stdout
	case cmd.Stdout != nil:
		c.Stdout = cmd.Stdout
	}
	if cmd.Stderr != nil {
		c.Stderr = io.MultiWriter(cmd.Stderr, &stderr)
	} else {
		c.Stderr = &stderr
	}

	r.logger.Debug().Str("command", cmd.String()).Str("dir", cmd.Dir).Msg("Running command")

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ExitError{Command: cmd.String(), ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		return nil, fmt.Errorf("failed to execute command %q: %w", cmd.String(), err)
	}

	r.logger.Debug().
		Str("command", cmd.String()).
		Dur("duration", result.Duration).
		Msg("Command finished")
	return result, nil
}

// Start launches cmd in the background.
func (r *CommandRunner) Start(ctx context.Context, cmd Command) (Process, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("command is required")
	}

	c := r.build(ctx, cmd)
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command %q: %w", cmd.String(), err)
	}

	r.logger.Debug().Str("command", cmd.String()).Int("pid", c.Process.Pid).Msg("Started command")
	return &process{cmd: c}, nil
}

func (r *CommandRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	return c
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *process) Wait() error {
	return p.cmd.Wait()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
