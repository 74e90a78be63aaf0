package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	appErr "codejudge/pkg/errors"
)

const (
	statusKeyPrefix   = "judge:status:"
	throttleKeyPrefix = "judge:submit:"
)

// StatusRepository keeps the live status document of each submission in the cache.
type StatusRepository struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, ttl: ttl, now: time.Now}
}

func statusKey(submissionID int64) string {
	return statusKeyPrefix + strconv.FormatInt(submissionID, 10)
}

// Get returns the cached status. A missing entry is a CacheMiss error.
func (r *StatusRepository) Get(ctx context.Context, submissionID int64) (model.JudgeStatus, error) {
	if submissionID <= 0 {
		return model.JudgeStatus{}, appErr.ValidationError("submission_id", "must be positive")
	}
	if r.cache == nil {
		return model.JudgeStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKey(submissionID))
	if err != nil {
		return model.JudgeStatus{}, appErr.Wrapf(err, appErr.CacheError, "read status failed")
	}
	if val == "" {
		return model.JudgeStatus{}, appErr.Newf(appErr.CacheMiss, "status of submission %d is not cached", submissionID)
	}
	var status model.JudgeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.JudgeStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

// Save persists status, stamping UpdatedAt.
func (r *StatusRepository) Save(ctx context.Context, status model.JudgeStatus) error {
	if status.SubmissionID <= 0 {
		return appErr.ValidationError("submission_id", "must be positive")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	status.UpdatedAt = r.now().Unix()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := r.cache.Set(ctx, statusKey(status.SubmissionID), string(data), r.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "store status failed")
	}
	return nil
}

// ReportStatus merges worker progress into the cached document.
func (r *StatusRepository) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	status, err := r.Get(ctx, update.SubmissionID)
	if err != nil && !appErr.Is(err, appErr.CacheMiss) {
		return err
	}
	if status.Status.Terminal() {
		return nil
	}
	status.SubmissionID = update.SubmissionID
	status.Status = update.Status
	if update.Language != "" {
		status.Language = update.Language
	}
	status.Progress = model.Progress{TotalTests: update.TotalTests, DoneTests: update.DoneTests}
	return r.Save(ctx, status)
}

// AllowSubmit reports whether userID may submit now, claiming the slot for interval when it may.
func (r *StatusRepository) AllowSubmit(ctx context.Context, userID int64, interval time.Duration) (bool, error) {
	if interval <= 0 {
		return true, nil
	}
	if r.cache == nil {
		return false, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	ok, err := r.cache.SetNX(ctx, throttleKeyPrefix+strconv.FormatInt(userID, 10), 1, interval)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "check submit interval failed")
	}
	return ok, nil
}

var _ sandbox.StatusReporter = (*StatusRepository)(nil)
