package model

import (
	"fmt"
	"time"
)

// SubmissionStatus tracks the grading lifecycle of a submission.
type SubmissionStatus int

const (
	StatusPending SubmissionStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{"Pending", "Running", "Completed", "Failed"}

func (s SubmissionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("SubmissionStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further grading will happen.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MarshalText encodes the status by name.
func (s SubmissionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *SubmissionStatus) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = SubmissionStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown submission status %q", string(text))
}

// Submission is one attempt to solve a problem.
type Submission struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	ProblemID int64            `json:"problem_id"`
	Language  string           `json:"language"`
	Code      string           `json:"code,omitempty"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
