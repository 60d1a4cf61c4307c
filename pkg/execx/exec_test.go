package execx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestRunner() *CommandRunner {
	return NewCommandRunner(zerolog.New(io.Discard))
}

func TestRunCapturesStdout(t *testing.T) {
	result, err := newTestRunner().Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "printf 'a/1.0\\nb/2.0\\n'"},
		Capture: true,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Stdout != "a/1.0\nb/2.0\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d", result.ExitCode)
	}
}

func TestRunStreamsStdout(t *testing.T) {
	var out bytes.Buffer
	_, err := newTestRunner().Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo streamed"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "streamed" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestRunNonZeroExit(t *testing.T) {
	result, err := newTestRunner().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo oops >&2; exit 3"},
	})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 || result.ExitCode != 3 {
		t.Errorf("exit code = %d / %d, want 3", exitErr.ExitCode, result.ExitCode)
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Errorf("error %q does not include stderr", err)
	}
}

func TestRunEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	result, err := newTestRunner().Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo $DISPLAY; pwd"},
		Env:     []string{"DISPLAY=:7"},
		Dir:     dir,
		Capture: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(lines) != 2 || lines[0] != ":7" || !strings.HasSuffix(lines[1], dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("output = %q", result.Stdout)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), Command{Name: "/nonexistent/binary"})
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Error("a missing binary is not an exit error")
	}
}

func TestRunRequiresName(t *testing.T) {
	if _, err := newTestRunner().Run(context.Background(), Command{}); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestStartAndKill(t *testing.T) {
	p, err := newTestRunner().Start(context.Background(), Command{Name: "sleep", Args: []string{"30"}})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid() = %d", p.Pid())
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("Kill error: %v", err)
	}
	if err := p.Wait(); err == nil {
		t.Error("Wait after Kill should report the signal")
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill error: %v", err)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "ccstudio", Args: []string{"-noSplash", "-listInstalledRoots"}}
	if got := c.String(); got != "ccstudio -noSplash -listInstalledRoots" {
		t.Errorf("String() = %q", got)
	}
}
