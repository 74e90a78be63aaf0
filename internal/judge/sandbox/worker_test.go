package sandbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/workdir"
	appErr "codejudge/pkg/errors"
)

type fakeRunner struct {
	mu       sync.Mutex
	outcomes []result.Outcome
	errs     []error
	panicAt  int
	requests []runner.ExecuteRequest
}

func (f *fakeRunner) Execute(ctx context.Context, req runner.ExecuteRequest) (result.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	if f.panicAt > 0 && idx+1 == f.panicAt {
		panic("driver exploded")
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	if idx < len(f.outcomes) {
		return f.outcomes[idx], err
	}
	return result.Outcome{}, err
}

type fakeSandboxes struct {
	mu         sync.Mutex
	acquired   int
	released   int
	acquireErr error
	releaseErr error
}

func (f *fakeSandboxes) Acquire(ctx context.Context) (*workdir.Dir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return &workdir.Dir{ID: "sbx", Path: "/tmp/sbx"}, nil
}

func (f *fakeSandboxes) Release(dir *workdir.Dir) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return f.releaseErr
}

type fakeTestCases struct {
	tests []model.TestCase
	err   error
}

func (f *fakeTestCases) ListTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error) {
	return f.tests, f.err
}

type fakeReporter struct {
	updates []sandbox.StatusUpdate
}

func (f *fakeReporter) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	f.updates = append(f.updates, update)
	return nil
}

func newLangRepo(t *testing.T) *config.LocalRepository {
	t.Helper()
	repo, err := config.NewLocalRepository(nil)
	if err != nil {
		t.Fatalf("new language repository: %v", err)
	}
	return repo
}

func ranWith(stdout string, exitCode int, timeMs int64) result.Outcome {
	return result.Outcome{Ran: true, Run: result.RunResult{Stdout: stdout, ExitCode: exitCode, TimeMs: timeMs}}
}

var (
	testProblem    = model.Problem{ID: 3, TimeLimit: 2, MemoryLimit: 256}
	testSubmission = model.Submission{ID: 9, ProblemID: 3, Language: "Python", Code: "print(input())"}
)

func TestRunAllGradesEveryTestInOrder(t *testing.T) {
	tests := []model.TestCase{
		{ID: 101, Input: "a", Output: "a", CheckOrder: 1},
		{ID: 102, Input: "b", Output: "b", CheckOrder: 2},
		{ID: 103, Input: "c", Output: "c", CheckOrder: 3},
		{ID: 104, Input: "d", Output: "d", CheckOrder: 4},
	}
	fr := &fakeRunner{outcomes: []result.Outcome{
		ranWith("a", 0, 10),
		ranWith("x", 0, 20),
		ranWith("", 1, 30),
		{Ran: true, Run: result.RunResult{ExitCode: -1, TimedOut: true, TimeMs: 2000}},
	}}
	sbx := &fakeSandboxes{}
	reporter := &fakeReporter{}
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w := sandbox.NewWorker(fr, newLangRepo(t), sbx, &fakeTestCases{tests: tests}, sandbox.WithClock(func() time.Time { return stamp }))
	w.SetStatusReporter(reporter)

	results, err := w.RunAll(context.Background(), testProblem, testSubmission)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}

	want := []result.Verdict{result.VerdictAC, result.VerdictWA, result.VerdictRE, result.VerdictTLE}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, res := range results {
		if res.Verdict != want[i] {
			t.Fatalf("results[%d].Verdict = %q, want %q", i, res.Verdict, want[i])
		}
		if res.TestCaseID != tests[i].ID || res.SubmissionID != testSubmission.ID {
			t.Fatalf("results[%d] has ids %d/%d", i, res.SubmissionID, res.TestCaseID)
		}
		if res.MemoryUsed != 0 || !res.CreatedAt.Equal(stamp) {
			t.Fatalf("results[%d] unexpected memory/timestamp %+v", i, res)
		}
	}
	if results[1].ExecutionTime != 0.02 {
		t.Fatalf("execution time = %v", results[1].ExecutionTime)
	}
	if sbx.acquired != 4 || sbx.released != 4 {
		t.Fatalf("expected 4 acquire/release pairs, got %d/%d", sbx.acquired, sbx.released)
	}
	if len(reporter.updates) != 5 || reporter.updates[4].DoneTests != 4 || reporter.updates[0].TotalTests != 4 {
		t.Fatalf("unexpected progress updates %+v", reporter.updates)
	}
	for i, req := range fr.requests {
		if req.Input != tests[i].Input {
			t.Fatalf("request %d got input %q", i, req.Input)
		}
	}
}

func TestRunOneUnsupportedLanguage(t *testing.T) {
	sbx := &fakeSandboxes{}
	fr := &fakeRunner{}
	w := sandbox.NewWorker(fr, newLangRepo(t), sbx, nil)

	sub := testSubmission
	sub.Language = "Brainfuck"
	_, err := w.RunOne(context.Background(), testProblem, sub, model.TestCase{ID: 1})
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
	if sbx.acquired != 0 || len(fr.requests) != 0 {
		t.Fatal("no sandbox should be acquired for an unsupported language")
	}
}

func TestRunOnePassesLimits(t *testing.T) {
	fr := &fakeRunner{outcomes: []result.Outcome{ranWith("ok", 0, 1)}}
	w := sandbox.NewWorker(fr, newLangRepo(t), &fakeSandboxes{}, nil, sandbox.WithCompileTimeout(3*time.Second))

	sub := testSubmission
	sub.Language = "C++"
	if _, err := w.RunOne(context.Background(), testProblem, sub, model.TestCase{ID: 5, Input: "in", Output: "ok"}); err != nil {
		t.Fatalf("run one: %v", err)
	}
	req := fr.requests[0]
	if req.CompileLimits.WallTimeMs != 3000 {
		t.Fatalf("compile budget = %d", req.CompileLimits.WallTimeMs)
	}
	if req.RunLimits.WallTimeMs != 2000 || req.RunLimits.MemoryMB != 256 {
		t.Fatalf("run limits = %+v", req.RunLimits)
	}
	if req.Language.ID != "cpp" || req.SandboxID != "sbx" || req.WorkDir != "/tmp/sbx" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestRunOneRejectsNonPositiveTimeLimit(t *testing.T) {
	w := sandbox.NewWorker(&fakeRunner{}, newLangRepo(t), &fakeSandboxes{}, nil)
	_, err := w.RunOne(context.Background(), model.Problem{ID: 1}, testSubmission, model.TestCase{ID: 1})
	if !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunOneReleasesSandboxOnDriverError(t *testing.T) {
	boom := errors.New("disk full")
	sbx := &fakeSandboxes{}
	w := sandbox.NewWorker(&fakeRunner{errs: []error{boom}}, newLangRepo(t), sbx, nil)

	_, err := w.RunOne(context.Background(), testProblem, testSubmission, model.TestCase{ID: 1})
	if !errors.Is(err, boom) || !appErr.Is(err, appErr.JudgeSystemError) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if sbx.released != 1 {
		t.Fatalf("sandbox must be released, released=%d", sbx.released)
	}
}

func TestRunOneReleasesSandboxOnPanic(t *testing.T) {
	sbx := &fakeSandboxes{}
	w := sandbox.NewWorker(&fakeRunner{panicAt: 1}, newLangRepo(t), sbx, nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = w.RunOne(context.Background(), testProblem, testSubmission, model.TestCase{ID: 1})
	}()
	if sbx.released != 1 {
		t.Fatalf("sandbox must be released on panic, released=%d", sbx.released)
	}
}

func TestRunOneSurfacesLeak(t *testing.T) {
	sbx := &fakeSandboxes{releaseErr: appErr.New(appErr.SandboxLeaked)}
	w := sandbox.NewWorker(&fakeRunner{outcomes: []result.Outcome{ranWith("a", 0, 1)}}, newLangRepo(t), sbx, nil)

	_, err := w.RunOne(context.Background(), testProblem, testSubmission, model.TestCase{ID: 1, Output: "a"})
	if !appErr.Is(err, appErr.SandboxLeaked) {
		t.Fatalf("expected SandboxLeaked, got %v", err)
	}
}

func TestRunOneSandboxUnavailable(t *testing.T) {
	sbx := &fakeSandboxes{acquireErr: appErr.New(appErr.SandboxUnavailable)}
	fr := &fakeRunner{}
	w := sandbox.NewWorker(fr, newLangRepo(t), sbx, nil)

	_, err := w.RunOne(context.Background(), testProblem, testSubmission, model.TestCase{ID: 1})
	if !appErr.Is(err, appErr.SandboxUnavailable) {
		t.Fatalf("expected SandboxUnavailable, got %v", err)
	}
	if len(fr.requests) != 0 || sbx.released != 0 {
		t.Fatal("nothing should run or be released when acquire fails")
	}
}

func TestRunAllStopsOnInfrastructureFault(t *testing.T) {
	tests := []model.TestCase{{ID: 1, Output: "a"}, {ID: 2, Output: "a"}, {ID: 3, Output: "a"}}
	fr := &fakeRunner{
		outcomes: []result.Outcome{ranWith("a", 0, 1)},
		errs:     []error{nil, appErr.New(appErr.SandboxUnavailable)},
	}
	w := sandbox.NewWorker(fr, newLangRepo(t), &fakeSandboxes{}, &fakeTestCases{tests: tests})

	results, err := w.RunAll(context.Background(), testProblem, testSubmission)
	if !appErr.Is(err, appErr.SandboxUnavailable) {
		t.Fatalf("expected SandboxUnavailable, got %v", err)
	}
	if len(results) != 1 || results[0].Verdict != result.VerdictAC {
		t.Fatalf("expected the first result to be kept, got %+v", results)
	}
	if len(fr.requests) != 2 {
		t.Fatalf("grading must stop after the fault, ran %d", len(fr.requests))
	}
}

func TestRunAllNoTestCases(t *testing.T) {
	w := sandbox.NewWorker(&fakeRunner{}, newLangRepo(t), &fakeSandboxes{}, &fakeTestCases{})
	results, err := w.RunAll(context.Background(), testProblem, testSubmission)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fr := &fakeRunner{}
	w := sandbox.NewWorker(fr, newLangRepo(t), &fakeSandboxes{}, &fakeTestCases{tests: []model.TestCase{{ID: 1}}})

	_, err := w.RunAll(ctx, testProblem, testSubmission)
	if !appErr.Is(err, appErr.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if len(fr.requests) != 0 {
		t.Fatal("no test case should run after cancellation")
	}
}
