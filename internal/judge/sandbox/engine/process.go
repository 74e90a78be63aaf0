package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProcessEngine runs commands as plain child processes of the judge.
// Each child leads its own process group so a timeout kills everything it spawned.
type ProcessEngine struct {
	cfg Config
}

// NewEngine creates a process engine.
func NewEngine(cfg Config) *ProcessEngine {
	return &ProcessEngine{cfg: cfg.withDefaults()}
}

func (e *ProcessEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return result.RunResult{ExitCode: -1}, appErr.Wrapf(err, appErr.Timeout, "execution cancelled")
	}

	stdout := newLimitedBuffer(e.cfg.StdoutStderrMaxBytes)
	stderr := newLimitedBuffer(e.cfg.StdoutStderrMaxBytes)

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = mergeEnv(os.Environ(), runSpec.Env)
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{ExitCode: -1}, appErr.Wrapf(err, appErr.ProcessStartFailed, "start %s failed", runSpec.Cmd[0]).
			WithDetail("cmd", runSpec.Cmd[0])
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var wallTimer <-chan time.Time
	if wallLimit := durationFromMs(runSpec.Limits.WallTimeMs); wallLimit > 0 {
		timer := time.NewTimer(wallLimit)
		defer timer.Stop()
		wallTimer = timer.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-wallTimer:
		timedOut = true
		killProcessGroup(cmd)
		waitErr = <-waitCh
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		return result.RunResult{ExitCode: -1, TimeMs: time.Since(start).Milliseconds()},
			appErr.Wrapf(ctx.Err(), appErr.Timeout, "execution cancelled")
	}

	runResult := result.RunResult{
		ExitCode:        exitCodeFromErr(waitErr, cmd.ProcessState),
		TimedOut:        timedOut,
		TimeMs:          time.Since(start).Milliseconds(),
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
	}
	if timedOut && runResult.ExitCode == 0 {
		runResult.ExitCode = -1
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logger.Warn(ctx, "process wait returned error",
			zap.String("test_id", runSpec.TestID),
			zap.String("cmd", runSpec.Cmd[0]),
			zap.Error(waitErr),
		)
	}
	return runResult, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return appErr.ValidationError("cmd", "required")
	}
	return nil
}

// mergeEnv appends overrides to base, replacing entries with the same key.
func mergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		keys[envKey(kv)] = struct{}{}
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if _, ok := keys[envKey(kv)]; ok {
			continue
		}
		out = append(out, kv)
	}
	return append(out, overrides...)
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

func durationFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
