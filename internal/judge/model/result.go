package model

import (
	"time"

	"codejudge/internal/judge/sandbox/result"
)

// Result is the graded outcome of one submission against one test case.
type Result struct {
	ID           int64          `json:"id"`
	SubmissionID int64          `json:"submission_id"`
	TestCaseID   int64          `json:"test_case_id"`
	Verdict      result.Verdict `json:"verdict"`
	// ExecutionTime is the run phase wall time in seconds, 0 when the program never ran.
	ExecutionTime float64 `json:"execution_time"`
	// MemoryUsed is always 0.
	MemoryUsed float64   `json:"memory_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summarize returns the overall verdict: the first non-accepted verdict, or Accepted.
func Summarize(results []Result) result.Verdict {
	for _, r := range results {
		if r.Verdict != result.VerdictAC {
			return r.Verdict
		}
	}
	return result.VerdictAC
}
