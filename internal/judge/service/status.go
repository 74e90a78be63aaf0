package service

import (
	"context"

	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// GetStatus returns the live status, rebuilding it from the database on a cache miss.
func (s *Service) GetStatus(ctx context.Context, submissionID int64) (model.JudgeStatus, error) {
	if submissionID <= 0 {
		return model.JudgeStatus{}, appErr.ValidationError("submission_id", "must be positive")
	}
	ctxStatus, cancel := s.statusContext(ctx)
	status, err := s.statusRepo.Get(ctxStatus, submissionID)
	cancel()
	if err == nil {
		return status, nil
	}
	if !appErr.Is(err, appErr.CacheMiss) {
		logger.Warn(ctx, "read cached status failed", zap.Int64("submission_id", submissionID), zap.Error(err))
	}

	submission, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return model.JudgeStatus{}, err
	}
	status = model.JudgeStatus{
		SubmissionID: submission.ID,
		ProblemID:    submission.ProblemID,
		Status:       submission.Status,
		Language:     submission.Language,
		CreatedAt:    submission.CreatedAt.Unix(),
	}
	if submission.Status == model.StatusCompleted {
		results, err := s.results.ListBySubmission(ctx, submissionID)
		if err != nil {
			return model.JudgeStatus{}, err
		}
		status.Verdict = model.Summarize(results)
		status.Tests = model.NewTestSummaries(results)
		status.Progress = model.Progress{TotalTests: len(results), DoneTests: len(results)}
	}
	s.saveStatus(ctx, status)
	return status, nil
}

// ListResults returns the stored per-test results of a submission.
func (s *Service) ListResults(ctx context.Context, submissionID int64) ([]model.Result, error) {
	if submissionID <= 0 {
		return nil, appErr.ValidationError("submission_id", "must be positive")
	}
	if _, err := s.submissions.Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.results.ListBySubmission(ctx, submissionID)
}

// saveStatus writes the cache copy. The database stays authoritative, so failures are only logged.
func (s *Service) saveStatus(ctx context.Context, status model.JudgeStatus) {
	ctxStatus, cancel := s.statusContext(ctx)
	defer cancel()
	if err := s.statusRepo.Save(ctxStatus, status); err != nil {
		logger.Warn(ctx, "save status failed",
			zap.Int64("submission_id", status.SubmissionID),
			zap.String("status", status.Status.String()),
			zap.Error(err),
		)
	}
}
