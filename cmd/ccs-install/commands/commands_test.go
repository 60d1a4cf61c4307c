package commands

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ccsimage/ccs-install/pkg/engine"
	"github.com/ccsimage/ccs-install/pkg/iu"
)

// fakeDirector is a stand-in ccstudio that reports one installed root and
// accepts every install and uninstall.
const fakeDirector = `#!/bin/sh
for a in "$@"; do
  case "$a" in
    -listInstalledRoots)
      printf 'A/18.12.3\nB/1.0\nOperation completed in 5 ms.\n'
      exit 0;;
  esac
done
exit 0
`

// runCLI executes the root command with a clean global state and no
// environment.
func runCLI(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()

	configPath, verbose, jsonOutput = "", false, false
	logFormat, journalPath, metricsFile, traceExporter = "", "", "", ""
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = os.LookupEnv })

	var out bytes.Buffer
	root := newRootCommand("test", "abc123", "2026-01-01")
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

// failingInstallDirector lists like fakeDirector but fails every install.
const failingInstallDirector = `#!/bin/sh
for a in "$@"; do
  case "$a" in
    -listInstalledRoots)
      printf 'A/18.12.3\nOperation completed in 5 ms.\n'
      exit 0;;
    -installIUs)
      echo "Cannot complete the install" >&2
      exit 13;;
  esac
done
exit 0
`

func writeFakeDirector(t *testing.T) string {
	t.Helper()
	return writeScript(t, fakeDirector)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ccstudio")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{engine.NewExternalQueryError("list failed", errors.New("exit 1")), 1},
		{engine.NewMalformedUnitError("bad", errors.New("x")), 2},
		{errUsage, 2},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestValidateCommandLayering(t *testing.T) {
	env := map[string]string{
		"INSTALL_IUS": "env/1.0",
		"CCS_PREFIX":  "/srv/ti",
	}

	out, err := runCLI(t, env, "validate", "--json", "--uninstall-iu", "old/2.1")
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Prefix    string   `json:"prefix"`
		Install   []string `json:"install"`
		Uninstall []string `json:"uninstall"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Prefix != "/srv/ti" || !reflect.DeepEqual(got.Install, []string{"env/1.0"}) || !reflect.DeepEqual(got.Uninstall, []string{"old/2.1"}) {
		t.Errorf("settings = %+v", got)
	}

	// Flags win over the environment.
	out, err = runCLI(t, env, "validate", "--json", "--install-iu", "flag/2.0")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "flag/2.0") || strings.Contains(out, "env/1.0") {
		t.Errorf("flag did not override environment: %s", out)
	}
}

func TestValidateRejectsMalformedUnit(t *testing.T) {
	_, err := runCLI(t, nil, "validate", "--install-iu", "noslash")
	if err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2 for %v", ExitCode(err), err)
	}
}

func TestPlanCommand(t *testing.T) {
	ccstudio := writeFakeDirector(t)

	out, err := runCLI(t, nil, "plan", "--json", "--ccstudio", ccstudio, "--install-iu", "A/18.12.4", "--uninstall-iu", "B/1.0")
	if err != nil {
		t.Fatal(err)
	}

	var result struct {
		Plan      engine.PlanSummary `json:"plan"`
		DryRun    bool               `json:"dry_run"`
		Completed []json.RawMessage  `json:"completed"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !result.DryRun || len(result.Completed) != 0 {
		t.Errorf("dry_run=%v completed=%d", result.DryRun, len(result.Completed))
	}
	if !reflect.DeepEqual(result.Plan.Uninstall, []string{"A/18.12.3", "B/1.0"}) {
		t.Errorf("uninstall = %v", result.Plan.Uninstall)
	}
	if !reflect.DeepEqual(result.Plan.Install, []string{"A/18.12.4"}) {
		t.Errorf("install = %v", result.Plan.Install)
	}
}

func TestReconcileJournalsRun(t *testing.T) {
	ccstudio := writeFakeDirector(t)
	journal := filepath.Join(t.TempDir(), "runs.db")
	metrics := filepath.Join(t.TempDir(), "ccs.prom")

	out, err := runCLI(t, nil, "reconcile", "--ccstudio", ccstudio, "--journal", journal, "--metrics-file", metrics, "--install-iu", "A/18.12.4")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"---- IUs to uninstall:\n    A/18.12.3", "---- Completed:\n    uninstall A/18.12.3\n    install A/18.12.4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	prom, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `ccs_install_runs_total{status="success"} 1`) {
		t.Errorf("metrics textfile missing run counter:\n%s", prom)
	}

	out, err = runCLI(t, nil, "history", "--json", "--journal", journal)
	if err != nil {
		t.Fatal(err)
	}
	var runs []struct {
		ID      string   `json:"id"`
		Status  string   `json:"status"`
		Install []string `json:"install"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(runs) != 1 || runs[0].Status != "completed" || !reflect.DeepEqual(runs[0].Install, []string{"A/18.12.4"}) {
		t.Fatalf("runs = %+v", runs)
	}

	out, err = runCLI(t, nil, "history", "--journal", journal, "--run", runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "0  uninstall  conflict") || !strings.Contains(out, "1  install    requested") {
		t.Errorf("run detail:\n%s", out)
	}
}

// writeInstallerArchive builds an installer tarball whose setup binary
// installs the fake director as the launcher under --prefix.
func writeInstallerArchive(t *testing.T) string {
	t.Helper()

	setup := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  case \"$1\" in --prefix) prefix=\"$2\"; shift;; esac\n" +
		"  shift\n" +
		"done\n" +
		"mkdir -p \"$prefix/ccs/eclipse\"\n" +
		"cat > \"$prefix/ccs/eclipse/ccstudio\" <<'EOS'\n" +
		fakeDirector +
		"EOS\n" +
		"chmod 755 \"$prefix/ccs/eclipse/ccstudio\"\n"

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	entries := []struct {
		name string
		body string
		mode int64
		dir  bool
	}{
		{name: "CCS9.3.0/", mode: 0o755, dir: true},
		{name: "CCS9.3.0/ccs_setup_9.3.0.00012.bin", body: setup, mode: 0o755},
	}
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Typeflag: tar.TypeReg, Size: int64(len(e.body))}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "ccs.tar")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInstallCommand(t *testing.T) {
	prefix := t.TempDir()
	settings := filepath.Join(t.TempDir(), "ccs.yaml")
	if err := os.WriteFile(settings, []byte("prefix: "+prefix+"\nlink: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, nil, "install", "--config", settings, "--tarball", writeInstallerArchive(t),
		"--no-display", "--install-iu", "A/18.12.4")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "---- Completed:\n    uninstall A/18.12.3\n    install A/18.12.4") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(prefix, "ccs", "eclipse", "ccstudio")); err != nil {
		t.Errorf("launcher not installed: %v", err)
	}
}

func TestInstallRejectsMissingTarball(t *testing.T) {
	_, err := runCLI(t, nil, "install", "--tarball", filepath.Join(t.TempDir(), "missing.tar"), "--no-display")
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2 for %v", ExitCode(err), err)
	}
}

func TestReconcileReportsPartialProgress(t *testing.T) {
	ccstudio := writeScript(t, failingInstallDirector)

	out, err := runCLI(t, nil, "reconcile", "--ccstudio", ccstudio, "--install-iu", "A/18.12.4")
	if !engine.IsActionExecution(err) {
		t.Fatalf("error = %v, want action execution error", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode = %d, want 1", ExitCode(err))
	}
	if !strings.HasSuffix(out, "---- Completed:\n    uninstall A/18.12.3\n") {
		t.Errorf("output:\n%s", out)
	}
}

func TestHistoryRequiresJournal(t *testing.T) {
	_, err := runCLI(t, nil, "history")
	if !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want usage error", err)
	}
}

func TestPrintResultText(t *testing.T) {
	plan := engine.Plan(
		iu.NewSet(iu.MustParse("A/18.12.3")),
		iu.NewSet(iu.MustParse("A/18.12.4")),
		iu.NewSet(),
	)
	var buf bytes.Buffer
	err := printResult(&buf, &engine.Result{Summary: plan.Summary(), DryRun: true}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := `
---- IUs present before:
    A/18.12.3

---- IUs conflicting with requests:
    A/18.12.3

---- IUs to uninstall:
    A/18.12.3

---- IUs to install:
    A/18.12.4

(dry run, nothing changed)
`
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
