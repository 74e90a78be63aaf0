package runner

import (
	"context"

	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

// ExecuteRequest describes one test case attempt inside an acquired sandbox.
type ExecuteRequest struct {
	SubmissionID  string
	TestID        string
	SandboxID     string
	WorkDir       string
	Language      profile.LanguageSpec
	Code          string
	Input         string
	CompileLimits spec.ResourceLimit
	RunLimits     spec.ResourceLimit
}

// CompileRequest describes one compilation task.
type CompileRequest struct {
	SubmissionID string
	WorkDir      string
	Language     profile.LanguageSpec
	Files        Files
	Limits       spec.ResourceLimit
}

// RunRequest describes one execution task.
type RunRequest struct {
	SubmissionID string
	TestID       string
	WorkDir      string
	Language     profile.LanguageSpec
	Files        Files
	Input        string
	Limits       spec.ResourceLimit
}

// Files holds the absolute paths a language writes inside the sandbox.
type Files struct {
	Source string
	Binary string
}

// Runner writes, compiles and runs one submission against one input.
type Runner interface {
	Execute(ctx context.Context, req ExecuteRequest) (result.Outcome, error)
}
