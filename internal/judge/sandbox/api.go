// Package sandbox grades submissions one test case at a time.
package sandbox

import (
	"context"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/workdir"
)

// TestCaseSource loads the hidden test cases of a problem in grading order.
type TestCaseSource interface {
	ListTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error)
}

// SandboxManager hands out and reclaims scratch directories.
type SandboxManager interface {
	Acquire(ctx context.Context) (*workdir.Dir, error)
	Release(dir *workdir.Dir) error
}

// Grader is the entry point used by the judge service.
type Grader interface {
	RunOne(ctx context.Context, problem model.Problem, submission model.Submission, testCase model.TestCase) (model.Result, error)
	RunAll(ctx context.Context, problem model.Problem, submission model.Submission) ([]model.Result, error)
}
