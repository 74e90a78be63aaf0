package model

import "codejudge/internal/judge/sandbox/result"

// JudgeStatus is the live status document returned to API clients.
type JudgeStatus struct {
	SubmissionID int64            `json:"submission_id"`
	ProblemID    int64            `json:"problem_id"`
	Status       SubmissionStatus `json:"status"`
	// Verdict is set once the submission is completed.
	Verdict      result.Verdict `json:"verdict,omitempty"`
	Language     string         `json:"language"`
	Progress     Progress       `json:"progress"`
	Tests        []TestSummary  `json:"tests,omitempty"`
	ErrorCode    int            `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at"`
	FinishedAt   int64          `json:"finished_at,omitempty"`
}

// Progress represents judge progress.
type Progress struct {
	TotalTests int `json:"total_tests"`
	DoneTests  int `json:"done_tests"`
}

// TestSummary is the per test case line of a status document.
type TestSummary struct {
	TestCaseID    int64          `json:"test_case_id"`
	Verdict       result.Verdict `json:"verdict"`
	ExecutionTime float64        `json:"execution_time"`
}

// NewTestSummaries projects stored results into status lines.
func NewTestSummaries(results []Result) []TestSummary {
	if len(results) == 0 {
		return nil
	}
	out := make([]TestSummary, 0, len(results))
	for _, r := range results {
		out = append(out, TestSummary{
			TestCaseID:    r.TestCaseID,
			Verdict:       r.Verdict,
			ExecutionTime: r.ExecutionTime,
		})
	}
	return out
}

// StatusEventType represents the status event type.
type StatusEventType string

const (
	// StatusEventFinal indicates the final status event.
	StatusEventFinal StatusEventType = "final"
)

// StatusEvent carries status updates for async processing.
type StatusEvent struct {
	Type      StatusEventType `json:"type"`
	Status    JudgeStatus     `json:"status"`
	CreatedAt int64           `json:"created_at"`
}
