package service

import (
	"context"
	"fmt"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const (
	defaultMaxCodeBytes = 64 << 10
	defaultSlotWait     = 2 * time.Second
)

// StatusStore keeps the live status documents.
type StatusStore interface {
	Get(ctx context.Context, submissionID int64) (model.JudgeStatus, error)
	Save(ctx context.Context, status model.JudgeStatus) error
	AllowSubmit(ctx context.Context, userID int64, interval time.Duration) (bool, error)
}

// Service accepts submissions, grades them and serves their status.
type Service struct {
	grader      sandbox.Grader
	languages   config.LanguageSpecRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	statusRepo  StatusStore
	publisher   repository.StatusEventPublisher
	queue       repository.JudgeQueue
	conn        sqlx.SqlConn

	maxCodeBytes   int
	submitInterval time.Duration
	workerTimeout  time.Duration
	statusTimeout  time.Duration
	slotWait       time.Duration
	sem            chan struct{}
	now            func() time.Time
}

// Config holds service dependencies and settings.
type Config struct {
	Grader      sandbox.Grader
	Languages   config.LanguageSpecRepository
	Problems    repository.ProblemRepository
	Submissions repository.SubmissionRepository
	Results     repository.ResultRepository
	StatusRepo  StatusStore
	// Publisher is optional. Final statuses are not broadcast without it.
	Publisher repository.StatusEventPublisher
	Queue     repository.JudgeQueue
	// Conn runs the result write in a transaction. Without it the statements run one by one.
	Conn sqlx.SqlConn

	MaxCodeBytes   int
	SubmitInterval time.Duration
	WorkerTimeout  time.Duration
	StatusTimeout  time.Duration
	WorkerPoolSize int
	SlotWait       time.Duration
	Now            func() time.Time
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Grader == nil {
		return nil, fmt.Errorf("grader is required")
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("language repository is required")
	}
	if cfg.Problems == nil || cfg.Submissions == nil || cfg.Results == nil {
		return nil, fmt.Errorf("problem, submission and result repositories are required")
	}
	if cfg.StatusRepo == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("judge queue is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	maxCode := cfg.MaxCodeBytes
	if maxCode <= 0 {
		maxCode = defaultMaxCodeBytes
	}
	slotWait := cfg.SlotWait
	if slotWait <= 0 {
		slotWait = defaultSlotWait
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		grader:         cfg.Grader,
		languages:      cfg.Languages,
		problems:       cfg.Problems,
		submissions:    cfg.Submissions,
		results:        cfg.Results,
		statusRepo:     cfg.StatusRepo,
		publisher:      cfg.Publisher,
		queue:          cfg.Queue,
		conn:           cfg.Conn,
		maxCodeBytes:   maxCode,
		submitInterval: cfg.SubmitInterval,
		workerTimeout:  cfg.WorkerTimeout,
		statusTimeout:  cfg.StatusTimeout,
		slotWait:       slotWait,
		sem:            make(chan struct{}, poolSize),
		now:            now,
	}, nil
}

// LanguageInfo is the public view of a supported language.
type LanguageInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Kind     profile.Kind `json:"kind"`
	Compiled bool         `json:"compiled"`
	// EntryPoint is the class name the source must declare, if any.
	EntryPoint string `json:"entry_point,omitempty"`
}

// Languages lists the supported languages in configuration order.
func (s *Service) Languages(ctx context.Context) ([]LanguageInfo, error) {
	specs, err := s.languages.ListLanguageSpecs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LanguageInfo, 0, len(specs))
	for _, spec := range specs {
		info := LanguageInfo{
			ID:       spec.ID,
			Name:     spec.Name,
			Kind:     spec.Kind,
			Compiled: spec.CompileEnabled(),
		}
		if spec.Kind == profile.KindEntryPoint {
			info.EntryPoint = spec.EntryPoint
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Service) withTransaction(ctx context.Context, fn func(session sqlx.Session) error) error {
	if s.conn == nil {
		return fn(nil)
	}
	if err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		return fn(session)
	}); err != nil {
		if _, ok := err.(*appErr.Error); ok {
			return err
		}
		return appErr.Wrapf(err, appErr.TransactionFailed, "transaction failed")
	}
	return nil
}

func (s *Service) statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statusTimeout > 0 {
		return context.WithTimeout(ctx, s.statusTimeout)
	}
	return ctx, func() {}
}
