package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/verdict"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"
)

const compileTestID = "compile"

// DefaultRunner implements compile/run workflows for every language kind.
type DefaultRunner struct {
	eng     engine.Engine
	metrics observer.MetricsRecorder
}

// NewRunner creates a new runner backed by the process engine.
func NewRunner(eng engine.Engine) *DefaultRunner {
	return NewRunnerWithObserver(eng, observer.NoopMetricsRecorder{})
}

// NewRunnerWithObserver creates a new runner with metrics hooks.
func NewRunnerWithObserver(eng engine.Engine, metrics observer.MetricsRecorder) *DefaultRunner {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &DefaultRunner{eng: eng, metrics: metrics}
}

// Execute writes the source, compiles it when the language needs it and runs it once.
// Everything written into the sandbox is removed before Execute returns.
func (r *DefaultRunner) Execute(ctx context.Context, req ExecuteRequest) (result.Outcome, error) {
	if err := validateExecuteRequest(req); err != nil {
		return result.Outcome{}, err
	}
	files := ResolveFiles(req.Language, req.WorkDir, req.SandboxID)
	defer cleanWorkDir(ctx, req.WorkDir)

	if err := writeSourceFile(files.Source, req.Code); err != nil {
		return result.Outcome{}, err
	}

	outcome := result.Outcome{CompileRequired: req.Language.CompileEnabled()}
	if outcome.CompileRequired {
		compileRes, err := r.Compile(ctx, CompileRequest{
			SubmissionID: req.SubmissionID,
			WorkDir:      req.WorkDir,
			Language:     req.Language,
			Files:        files,
			Limits:       req.CompileLimits,
		})
		if err != nil {
			return outcome, err
		}
		outcome.Compile = compileRes
		if !compileRes.OK {
			return outcome, nil
		}
	}

	runRes, err := r.Run(ctx, RunRequest{
		SubmissionID: req.SubmissionID,
		TestID:       req.TestID,
		WorkDir:      req.WorkDir,
		Language:     req.Language,
		Files:        files,
		Input:        req.Input,
		Limits:       req.RunLimits,
	})
	if err != nil {
		if appErr.Is(err, appErr.ProcessStartFailed) {
			outcome.Run = result.RunResult{ExitCode: -1, Stderr: err.Error()}
			return outcome, nil
		}
		return outcome, err
	}
	outcome.Ran = true
	outcome.Run = runRes
	return outcome, nil
}

// Compile runs the compile command under its budget.
// A compiler that cannot be started is reported as a failed compilation.
func (r *DefaultRunner) Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error) {
	if !req.Language.CompileEnabled() {
		return result.CompileResult{OK: true}, nil
	}
	cmd, err := buildCommand(req.Language.CompileCmdTpl, req.Language, req.WorkDir, req.Files)
	if err != nil {
		return result.CompileResult{}, err
	}

	runRes, err := r.eng.Run(ctx, spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       compileTestID,
		WorkDir:      req.WorkDir,
		Cmd:          cmd,
		Env:          req.Language.Env,
		Limits:       req.Limits,
	})
	if err != nil {
		if !appErr.Is(err, appErr.ProcessStartFailed) {
			return result.CompileResult{}, err
		}
		r.metrics.ObserveCompile(ctx, req.Language.ID, false, 0)
		return result.CompileResult{OK: false, ExitCode: -1, Error: err.Error()}, nil
	}

	compileRes := result.CompileResult{
		OK:       runRes.ExitCode == 0 && !runRes.TimedOut,
		ExitCode: runRes.ExitCode,
		TimedOut: runRes.TimedOut,
		TimeMs:   runRes.TimeMs,
	}
	if !compileRes.OK {
		compileRes.Error = runRes.Stderr
	}
	r.metrics.ObserveCompile(ctx, req.Language.ID, compileRes.OK, compileRes.TimeMs)
	return compileRes, nil
}

// Run executes the program with input on stdin under the run budget.
// Stdout is returned with trailing whitespace removed.
func (r *DefaultRunner) Run(ctx context.Context, req RunRequest) (result.RunResult, error) {
	cmd, err := buildCommand(req.Language.RunCmdTpl, req.Language, req.WorkDir, req.Files)
	if err != nil {
		return result.RunResult{}, err
	}
	runRes, err := r.eng.Run(ctx, spec.RunSpec{
		SubmissionID: req.SubmissionID,
		TestID:       req.TestID,
		WorkDir:      req.WorkDir,
		Cmd:          cmd,
		Env:          req.Language.Env,
		Stdin:        req.Input,
		Limits:       req.Limits,
	})
	if err != nil {
		return runRes, err
	}
	runRes.Stdout = verdict.Trim(runRes.Stdout)
	return runRes, nil
}

// ResolveFiles expands the language file templates for one sandbox.
func ResolveFiles(lang profile.LanguageSpec, workDir, sandboxID string) Files {
	files := Files{Source: filepath.Join(workDir, lang.FileName(lang.SourceFile, sandboxID))}
	if lang.BinaryFile != "" {
		files.Binary = filepath.Join(workDir, lang.FileName(lang.BinaryFile, sandboxID))
	}
	return files
}

func validateExecuteRequest(req ExecuteRequest) error {
	if req.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if req.TestID == "" {
		return appErr.ValidationError("test_id", "required")
	}
	if req.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if req.SandboxID == "" {
		return appErr.ValidationError("sandbox_id", "required")
	}
	if req.Language.ID == "" {
		return appErr.ValidationError("language_id", "required")
	}
	return nil
}

// buildCommand splits the template first so substituted paths stay single arguments.
func buildCommand(tpl string, lang profile.LanguageSpec, workDir string, files Files) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	replacer := strings.NewReplacer(
		profile.PlaceholderSrc, files.Source,
		profile.PlaceholderBin, files.Binary,
		profile.PlaceholderDir, workDir,
		profile.PlaceholderEntry, lang.EntryPoint,
	)
	for i, field := range fields {
		fields[i] = replacer.Replace(field)
	}
	return fields, nil
}

func writeSourceFile(path, code string) error {
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "write source failed")
	}
	return nil
}

// cleanWorkDir removes the source, compiler outputs and binary left in the sandbox.
func cleanWorkDir(ctx context.Context, workDir string) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(ctx, "read sandbox for cleanup failed", zap.String("work_dir", workDir), zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		path := filepath.Join(workDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn(ctx, "remove sandbox artifact failed", zap.String("path", path), zap.Error(err))
		}
	}
}
