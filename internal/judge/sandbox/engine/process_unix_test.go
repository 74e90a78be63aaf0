//go:build unix

package engine

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shellSpec(t *testing.T, script string) spec.RunSpec {
	return spec.RunSpec{
		SubmissionID: "1",
		TestID:       "1",
		WorkDir:      t.TempDir(),
		Cmd:          []string{"sh", "-c", script},
	}
}

func TestProcessEngineEchoesStdin(t *testing.T) {
	requireShell(t)
	eng := NewEngine(Config{})
	rs := shellSpec(t, "cat")
	rs.Stdin = "1 2\n3\n"

	res, err := eng.Run(context.Background(), rs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stdout != "1 2\n3\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestProcessEngineReportsExitCode(t *testing.T) {
	requireShell(t)
	res, err := NewEngine(Config{}).Run(context.Background(), shellSpec(t, "echo oops >&2; exit 3"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stderr != "oops\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestProcessEngineKillsProcessGroupOnTimeout(t *testing.T) {
	requireShell(t)
	rs := shellSpec(t, "sleep 30 & sleep 30; wait")
	rs.Limits.WallTimeMs = 200

	start := time.Now()
	res, err := NewEngine(Config{}).Run(context.Background(), rs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.ExitCode == 0 {
		t.Fatal("timed out process must not report exit code 0")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run took %v, children were not killed", elapsed)
	}
}

func TestProcessEngineSpawnFailure(t *testing.T) {
	rs := spec.RunSpec{
		SubmissionID: "1",
		TestID:       "1",
		WorkDir:      t.TempDir(),
		Cmd:          []string{"/nonexistent/compiler-binary"},
	}
	_, err := NewEngine(Config{}).Run(context.Background(), rs)
	if !appErr.Is(err, appErr.ProcessStartFailed) {
		t.Fatalf("expected ProcessStartFailed, got %v", err)
	}
}

func TestProcessEngineCancelledContext(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := NewEngine(Config{}).Run(ctx, shellSpec(t, "sleep 30"))
	if !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout error, got %v (result %+v)", err, res)
	}
	if res.TimedOut {
		t.Fatal("cancellation must not be reported as a time limit")
	}
}

func TestProcessEngineTruncatesOutput(t *testing.T) {
	requireShell(t)
	res, err := NewEngine(Config{StdoutStderrMaxBytes: 4}).Run(context.Background(), shellSpec(t, "printf 123456789"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "1234" || !res.StdoutTruncated || res.StderrTruncated {
		t.Fatalf("unexpected truncated output %q %+v", res.Stdout, res)
	}
}

func TestProcessEngineTracksStreamsSeparately(t *testing.T) {
	requireShell(t)
	res, err := NewEngine(Config{StdoutStderrMaxBytes: 5}).Run(context.Background(), shellSpec(t, "printf hello; printf 'long diagnostics' >&2"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "hello" || res.StdoutTruncated {
		t.Fatalf("stdout should be complete: %q %+v", res.Stdout, res)
	}
	if !res.StderrTruncated {
		t.Fatalf("stderr should be truncated: %+v", res)
	}

	res, err = NewEngine(Config{StdoutStderrMaxBytes: 5}).Run(context.Background(), shellSpec(t, "printf helloXXXXXXXX"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "hello" || !res.StdoutTruncated {
		t.Fatalf("stdout should be truncated: %q %+v", res.Stdout, res)
	}
}

func TestProcessEngineEnvOverride(t *testing.T) {
	requireShell(t)
	rs := shellSpec(t, `printf "%s" "$JUDGE_FLAVOR"`)
	rs.Env = []string{"JUDGE_FLAVOR=strict"}
	res, err := NewEngine(Config{}).Run(context.Background(), rs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "strict" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestProcessEngineValidatesSpec(t *testing.T) {
	_, err := NewEngine(Config{}).Run(context.Background(), spec.RunSpec{WorkDir: t.TempDir()})
	if !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
