package sandbox

import (
	"context"

	"codejudge/internal/judge/model"
)

// StatusUpdate carries intermediate judge progress.
type StatusUpdate struct {
	SubmissionID int64
	Status       model.SubmissionStatus
	Language     string
	TotalTests   int
	DoneTests    int
}

// StatusReporter persists intermediate status updates.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}
