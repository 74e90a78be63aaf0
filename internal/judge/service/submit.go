package service

import (
	"context"
	"strings"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// SubmitRequest is a new attempt at a problem.
type SubmitRequest struct {
	UserID    int64  `json:"user_id"`
	ProblemID int64  `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// Submit validates and stores a submission, then queues it for grading.
// The returned status is Pending.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (model.JudgeStatus, error) {
	lang, err := s.validateSubmit(ctx, req)
	if err != nil {
		return model.JudgeStatus{}, err
	}

	if s.submitInterval > 0 {
		allowed, err := s.statusRepo.AllowSubmit(ctx, req.UserID, s.submitInterval)
		if err != nil {
			logger.Warn(ctx, "submit throttle unavailable", zap.Int64("user_id", req.UserID), zap.Error(err))
		} else if !allowed {
			return model.JudgeStatus{}, appErr.New(appErr.SubmitTooFrequently)
		}
	}

	if _, err := s.problems.Get(ctx, req.ProblemID); err != nil {
		return model.JudgeStatus{}, err
	}

	submission := &model.Submission{
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		Language:  lang.ID,
		Code:      req.Code,
		Status:    model.StatusPending,
		CreatedAt: s.now(),
	}
	id, err := s.submissions.Create(ctx, submission)
	if err != nil {
		return model.JudgeStatus{}, err
	}
	ctx = logger.WithSubmission(ctx, id)

	pending := model.JudgeStatus{
		SubmissionID: id,
		ProblemID:    req.ProblemID,
		Status:       model.StatusPending,
		Language:     lang.ID,
		CreatedAt:    submission.CreatedAt.Unix(),
	}
	s.saveStatus(ctx, pending)

	if err := s.queue.Enqueue(ctx, model.JudgeMessage{
		SubmissionID: id,
		ProblemID:    req.ProblemID,
		UserID:       req.UserID,
		Language:     lang.ID,
	}); err != nil {
		logger.Error(ctx, "enqueue submission failed", zap.Error(err))
		s.markFailed(ctx, pending, err)
		return model.JudgeStatus{}, err
	}

	logger.Info(ctx, "submission accepted",
		zap.Int64("user_id", req.UserID),
		zap.Int64("problem_id", req.ProblemID),
		zap.String("language", lang.ID),
	)
	return pending, nil
}

func (s *Service) validateSubmit(ctx context.Context, req SubmitRequest) (profile.LanguageSpec, error) {
	if req.UserID <= 0 {
		return profile.LanguageSpec{}, appErr.ValidationError("user_id", "must be positive")
	}
	if req.ProblemID <= 0 {
		return profile.LanguageSpec{}, appErr.ValidationError("problem_id", "must be positive")
	}
	if strings.TrimSpace(req.Code) == "" {
		return profile.LanguageSpec{}, appErr.New(appErr.RequiredFieldEmpty).WithDetail("field", "code")
	}
	if len(req.Code) > s.maxCodeBytes {
		return profile.LanguageSpec{}, appErr.New(appErr.CodeTooLarge).
			WithDetail("limit_bytes", s.maxCodeBytes).
			WithDetail("size_bytes", len(req.Code))
	}
	lang, err := s.languages.GetLanguageSpec(ctx, req.Language)
	if err != nil {
		return profile.LanguageSpec{}, err
	}
	if !lang.DeclaresEntryPoint(req.Code) {
		return profile.LanguageSpec{}, appErr.Newf(appErr.EntryPointMissing, "%s submissions must declare class %s", lang.Name, lang.EntryPoint)
	}
	return lang, nil
}
