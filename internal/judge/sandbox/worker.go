package sandbox

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/verdict"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"
)

// DefaultCompileTimeout is the fixed compile budget, independent of the problem.
const DefaultCompileTimeout = 5 * time.Second

// Worker grades submissions test case by test case.
// Test cases run one after another, each in its own sandbox directory.
type Worker struct {
	runner         runner.Runner
	langRepo       config.LanguageSpecRepository
	sandboxes      SandboxManager
	testCases      TestCaseSource
	statusReporter StatusReporter
	metrics        observer.MetricsRecorder
	compileTimeout time.Duration
	now            func() time.Time
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithCompileTimeout overrides the compile budget.
func WithCompileTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.compileTimeout = d
		}
	}
}

// WithMetrics records one observation per graded test case.
func WithMetrics(m observer.MetricsRecorder) WorkerOption {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker creates a new worker with required dependencies.
func NewWorker(
	runner runner.Runner,
	langRepo config.LanguageSpecRepository,
	sandboxes SandboxManager,
	testCases TestCaseSource,
	opts ...WorkerOption,
) *Worker {
	w := &Worker{
		runner:         runner,
		langRepo:       langRepo,
		sandboxes:      sandboxes,
		testCases:      testCases,
		metrics:        observer.NoopMetricsRecorder{},
		compileTimeout: DefaultCompileTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// RunOne grades one submission against one test case.
// An unsupported language fails with LanguageNotSupported before any sandbox is acquired.
func (w *Worker) RunOne(ctx context.Context, problem model.Problem, submission model.Submission, testCase model.TestCase) (model.Result, error) {
	lang, err := w.prepare(ctx, problem, submission)
	if err != nil {
		return model.Result{}, err
	}
	return w.runOne(ctx, problem, submission, lang, testCase)
}

// RunAll grades a submission against every test case of its problem, in source order.
// Failing verdicts do not stop the loop. An infrastructure error does, and the
// results gathered so far are returned with it.
func (w *Worker) RunAll(ctx context.Context, problem model.Problem, submission model.Submission) ([]model.Result, error) {
	lang, err := w.prepare(ctx, problem, submission)
	if err != nil {
		return nil, err
	}
	if w.testCases == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("test case source is not initialized")
	}
	tests, err := w.testCases.ListTestCases(ctx, problem.ID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "load test cases failed")
	}

	total := len(tests)
	w.reportStatus(ctx, submission, lang, total, 0)

	results := make([]model.Result, 0, total)
	for i, tc := range tests {
		if err := ctx.Err(); err != nil {
			return results, appErr.Wrapf(err, appErr.Timeout, "grading cancelled after %d of %d test cases", i, total)
		}
		res, err := w.runOne(ctx, problem, submission, lang, tc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		w.reportStatus(ctx, submission, lang, total, i+1)
	}
	return results, nil
}

func (w *Worker) prepare(ctx context.Context, problem model.Problem, submission model.Submission) (profile.LanguageSpec, error) {
	if w.runner == nil || w.langRepo == nil || w.sandboxes == nil {
		return profile.LanguageSpec{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	if problem.TimeLimit <= 0 {
		return profile.LanguageSpec{}, appErr.ValidationError("time_limit", "must be positive")
	}
	return w.langRepo.GetLanguageSpec(ctx, submission.Language)
}

func (w *Worker) runOne(
	ctx context.Context,
	problem model.Problem,
	submission model.Submission,
	lang profile.LanguageSpec,
	testCase model.TestCase,
) (res model.Result, err error) {
	dir, err := w.sandboxes.Acquire(ctx)
	if err != nil {
		return model.Result{}, err
	}
	defer func() {
		if relErr := w.sandboxes.Release(dir); relErr != nil {
			logger.Error(ctx, "release sandbox failed",
				zap.String("sandbox", dir.ID),
				zap.Int64("test_case_id", testCase.ID),
				zap.Error(relErr),
			)
			if err == nil {
				res, err = model.Result{}, relErr
			}
		}
	}()

	outcome, err := w.runner.Execute(ctx, runner.ExecuteRequest{
		SubmissionID: strconv.FormatInt(submission.ID, 10),
		TestID:       strconv.FormatInt(testCase.ID, 10),
		SandboxID:    dir.ID,
		WorkDir:      dir.Path,
		Language:     lang,
		Code:         submission.Code,
		Input:        testCase.Input,
		CompileLimits: spec.ResourceLimit{
			WallTimeMs: w.compileTimeout.Milliseconds(),
		},
		RunLimits: spec.ResourceLimit{
			WallTimeMs: problem.RunTimeout().Milliseconds(),
			MemoryMB:   int64(problem.MemoryLimit),
		},
	})
	if err != nil {
		return model.Result{}, appErr.Wrapf(err, appErr.JudgeSystemError, "execute test case %d failed", testCase.ID)
	}

	v := verdict.Classify(verdict.FromOutcome(outcome, testCase.Output))
	w.metrics.ObserveRun(ctx, lang.ID, v.Short(), outcome.Run.TimeMs)
	logger.Debug(ctx, "test case graded",
		zap.Int64("test_case_id", testCase.ID),
		zap.String("verdict", v.Short()),
		zap.Int64("time_ms", outcome.Run.TimeMs),
	)

	return model.Result{
		SubmissionID:  submission.ID,
		TestCaseID:    testCase.ID,
		Verdict:       v,
		ExecutionTime: outcome.ExecutionSeconds(),
		MemoryUsed:    0,
		CreatedAt:     w.now(),
	}, nil
}

func (w *Worker) reportStatus(ctx context.Context, submission model.Submission, lang profile.LanguageSpec, total, done int) {
	if w.statusReporter == nil {
		return
	}
	update := StatusUpdate{
		SubmissionID: submission.ID,
		Status:       model.StatusRunning,
		Language:     lang.ID,
		TotalTests:   total,
		DoneTests:    done,
	}
	if err := w.statusReporter.ReportStatus(ctx, update); err != nil {
		logger.Warn(ctx, "report judge progress failed", zap.Int64("submission_id", submission.ID), zap.Error(err))
	}
}
