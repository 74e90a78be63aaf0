package service

import (
	"context"
	"errors"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/repository"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"go.uber.org/zap"
)

// HandleMessage grades the submission named by a queue message.
// A nil return acknowledges the message; an error asks the queue to redeliver it.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	payload, err := repository.DecodeJudgeMessage(msg)
	if err != nil {
		logger.Warn(ctx, "drop malformed judge message", zap.Error(err))
		return nil
	}
	ctx = logger.WithSubmission(ctx, payload.SubmissionID)

	if err := s.acquireSlot(ctx); err != nil {
		return err
	}
	defer s.releaseSlot()

	return s.Grade(ctx, payload.SubmissionID)
}

// Grade runs every test case of a submission and records the outcome.
// Pending moves to Running and then to Completed, or to Failed when grading cannot finish.
// Configuration errors return nil since a retry cannot fix them.
func (s *Service) Grade(ctx context.Context, submissionID int64) error {
	submission, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		if appErr.Is(err, appErr.SubmissionNotFound) {
			logger.Warn(ctx, "skip unknown submission", zap.Int64("submission_id", submissionID))
			return nil
		}
		return err
	}
	if submission.Status == model.StatusCompleted {
		logger.Info(ctx, "skip completed submission", zap.Int64("submission_id", submissionID))
		return nil
	}

	status := model.JudgeStatus{
		SubmissionID: submission.ID,
		ProblemID:    submission.ProblemID,
		Status:       model.StatusRunning,
		Language:     submission.Language,
		CreatedAt:    submission.CreatedAt.Unix(),
	}

	problem, err := s.problems.Get(ctx, submission.ProblemID)
	if err != nil {
		return s.handleFailure(ctx, status, err)
	}

	if err := s.submissions.UpdateStatus(ctx, submission.ID, model.StatusRunning); err != nil {
		return err
	}
	s.saveStatus(ctx, status)

	ctxWorker := ctx
	if s.workerTimeout > 0 {
		var cancel context.CancelFunc
		ctxWorker, cancel = context.WithTimeout(ctx, s.workerTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.grader.RunAll(ctxWorker, problem, submission)
	if err != nil {
		logger.Error(ctx, "grading aborted",
			zap.Int("graded", len(results)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return s.handleFailure(ctx, status, err)
	}
	if len(results) == 0 {
		err := appErr.Newf(appErr.TestCaseNotFound, "problem %d has no test cases", problem.ID)
		return s.handleFailure(ctx, status, err)
	}

	if err := s.withTransaction(ctx, func(session sqlx.Session) error {
		if err := s.results.WithSession(session).Replace(ctx, submission.ID, results); err != nil {
			return err
		}
		return s.submissions.WithSession(session).UpdateStatus(ctx, submission.ID, model.StatusCompleted)
	}); err != nil {
		logger.Error(ctx, "store results failed", zap.Error(err))
		return s.handleFailure(ctx, status, err)
	}

	final := status
	final.Status = model.StatusCompleted
	final.Verdict = model.Summarize(results)
	final.Tests = model.NewTestSummaries(results)
	final.Progress = model.Progress{TotalTests: len(results), DoneTests: len(results)}
	final.FinishedAt = s.now().Unix()
	s.saveStatus(ctx, final)
	s.publishFinal(ctx, final)

	logger.Info(ctx, "submission graded",
		zap.String("verdict", final.Verdict.Short()),
		zap.Int("tests", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// handleFailure marks the submission Failed. Errors a retry might cure are returned.
func (s *Service) handleFailure(ctx context.Context, status model.JudgeStatus, err error) error {
	s.markFailed(ctx, status, err)
	if isConfigurationError(err) {
		logger.Warn(ctx, "submission cannot be graded", zap.Error(err))
		return nil
	}
	return err
}

func (s *Service) markFailed(ctx context.Context, status model.JudgeStatus, cause error) {
	if err := s.submissions.UpdateStatus(ctx, status.SubmissionID, model.StatusFailed); err != nil {
		logger.Error(ctx, "mark submission failed status failed", zap.Error(err))
	}
	failed := status
	failed.Status = model.StatusFailed
	failed.ErrorCode = int(appErr.GetCode(cause))
	failed.ErrorMessage = cause.Error()
	failed.FinishedAt = s.now().Unix()
	s.saveStatus(ctx, failed)
	s.publishFinal(ctx, failed)
}

func isConfigurationError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch appErr.GetCode(err) {
	case appErr.LanguageNotSupported, appErr.ProblemNotFound, appErr.TestCaseNotFound, appErr.ValidationFailed, appErr.InvalidParams:
		return true
	}
	return false
}

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.slotWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

func (s *Service) publishFinal(ctx context.Context, status model.JudgeStatus) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFinalStatus(ctx, status); err != nil {
		logger.Warn(ctx, "publish final status failed", zap.Error(err))
	}
}
