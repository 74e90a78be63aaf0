package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestStatusRepositorySaveAndGet(t *testing.T) {
	c, mr := newMiniCache(t)
	repo := NewStatusRepository(c, time.Hour)
	ctx := context.Background()

	if _, err := repo.Get(ctx, 1); !appErr.Is(err, appErr.CacheMiss) {
		t.Fatalf("expected CacheMiss, got %v", err)
	}

	status := model.JudgeStatus{SubmissionID: 1, Status: model.StatusCompleted, Verdict: result.VerdictWA, Language: "cpp"}
	if err := repo.Save(ctx, status); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("judge:status:1"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusCompleted || got.Verdict != result.VerdictWA || got.UpdatedAt == 0 {
		t.Fatalf("unexpected status %+v", got)
	}

	raw, _ := mr.Get("judge:status:1")
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("stored document is not json: %v", err)
	}
	if doc["status"] != "Completed" {
		t.Fatalf("status should be stored by name, got %v", doc["status"])
	}
}

func TestStatusRepositoryValidation(t *testing.T) {
	c, mr := newMiniCache(t)
	repo := NewStatusRepository(c, time.Hour)
	ctx := context.Background()

	if err := repo.Save(ctx, model.JudgeStatus{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := repo.Get(ctx, 0); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := mr.Set("judge:status:2", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.Get(ctx, 2); !appErr.Is(err, appErr.CacheError) {
		t.Fatalf("expected CacheError, got %v", err)
	}

	nilRepo := NewStatusRepository(nil, time.Hour)
	if _, err := nilRepo.Get(ctx, 1); !appErr.Is(err, appErr.CacheError) {
		t.Fatalf("expected CacheError, got %v", err)
	}
}

func TestStatusRepositoryReportStatus(t *testing.T) {
	c, _ := newMiniCache(t)
	repo := NewStatusRepository(c, time.Hour)
	ctx := context.Background()

	if err := repo.Save(ctx, model.JudgeStatus{SubmissionID: 3, ProblemID: 8, Status: model.StatusPending, CreatedAt: 100}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := repo.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: 3, Status: model.StatusRunning, Language: "java", TotalTests: 4, DoneTests: 1})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	got, _ := repo.Get(ctx, 3)
	if got.Status != model.StatusRunning || got.Progress.DoneTests != 1 || got.Progress.TotalTests != 4 {
		t.Fatalf("progress not merged: %+v", got)
	}
	if got.ProblemID != 8 || got.CreatedAt != 100 || got.Language != "java" {
		t.Fatalf("existing fields lost: %+v", got)
	}

	// progress arriving after the final status must not regress it
	if err := repo.Save(ctx, model.JudgeStatus{SubmissionID: 3, Status: model.StatusCompleted, Verdict: result.VerdictAC}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: 3, Status: model.StatusRunning, DoneTests: 2}); err != nil {
		t.Fatalf("report: %v", err)
	}
	got, _ = repo.Get(ctx, 3)
	if got.Status != model.StatusCompleted {
		t.Fatalf("terminal status overwritten: %+v", got)
	}

	if err := repo.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: 4, Status: model.StatusRunning, TotalTests: 2}); err != nil {
		t.Fatalf("report on cache miss: %v", err)
	}
	if got, err := repo.Get(ctx, 4); err != nil || got.Progress.TotalTests != 2 {
		t.Fatalf("status should be created on miss: %+v %v", got, err)
	}
}

func TestStatusRepositoryAllowSubmit(t *testing.T) {
	c, mr := newMiniCache(t)
	repo := NewStatusRepository(c, time.Hour)
	ctx := context.Background()

	ok, err := repo.AllowSubmit(ctx, 5, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("first submit should pass: %v %v", ok, err)
	}
	ok, _ = repo.AllowSubmit(ctx, 5, 10*time.Second)
	if ok {
		t.Fatal("second submit inside the interval should be rejected")
	}
	if ok, _ := repo.AllowSubmit(ctx, 6, 10*time.Second); !ok {
		t.Fatal("other users are not throttled")
	}
	mr.FastForward(11 * time.Second)
	if ok, _ := repo.AllowSubmit(ctx, 5, 10*time.Second); !ok {
		t.Fatal("submit should pass after the interval")
	}
	if ok, _ := repo.AllowSubmit(ctx, 5, 0); !ok {
		t.Fatal("zero interval disables throttling")
	}
}

type stubProblems struct {
	calls   int
	problem model.Problem
	err     error
}

func (s *stubProblems) Get(ctx context.Context, id int64) (model.Problem, error) {
	s.calls++
	if s.err != nil {
		return model.Problem{}, s.err
	}
	if s.problem.ID != id {
		return model.Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %d not found", id)
	}
	return s.problem, nil
}

func TestCachedProblemRepository(t *testing.T) {
	c, mr := newMiniCache(t)
	source := &stubProblems{problem: model.Problem{ID: 1, Title: "A+B", TimeLimit: 1}}
	repo := NewCachedProblemRepository(source, c, time.Minute, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := repo.Get(ctx, 1)
		if err != nil || p.Title != "A+B" || p.TimeLimit != 1 {
			t.Fatalf("lookup %d: %+v %v", i, p, err)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one source lookup, got %d", source.calls)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.Get(ctx, 2); !appErr.Is(err, appErr.ProblemNotFound) {
			t.Fatalf("expected ProblemNotFound, got %v", err)
		}
	}
	if source.calls != 2 {
		t.Fatalf("missing problem should be cached, source called %d times", source.calls)
	}
	if v, _ := mr.Get("judge:problem:2"); v != cache.NullCacheValue {
		t.Fatalf("expected null marker, got %q", v)
	}
}

func TestCachedProblemRepositoryPassThrough(t *testing.T) {
	source := &stubProblems{err: errors.New("db down")}
	if repo := NewCachedProblemRepository(source, nil, time.Minute, time.Second); repo != ProblemRepository(source) {
		t.Fatal("nil cache should return the source unchanged")
	}

	c, _ := newMiniCache(t)
	repo := NewCachedProblemRepository(source, c, time.Minute, time.Second)
	if _, err := repo.Get(context.Background(), 1); err == nil || appErr.Is(err, appErr.ProblemNotFound) {
		t.Fatalf("source failures must surface unchanged, got %v", err)
	}
}

type fakeProducer struct {
	topic string
	msg   *mq.Message
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	p.topic, p.msg = topic, message
	return p.err
}

func TestMQStatusEventPublisher(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewMQStatusEventPublisher(producer, "judge.status.final")

	status := model.JudgeStatus{SubmissionID: 12, Status: model.StatusCompleted, Verdict: result.VerdictAC}
	if err := pub.PublishFinalStatus(context.Background(), status); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if producer.topic != "judge.status.final" || producer.msg.ID != "12" {
		t.Fatalf("unexpected publish %s %+v", producer.topic, producer.msg)
	}
	var event model.StatusEvent
	if err := json.Unmarshal(producer.msg.Body, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != model.StatusEventFinal || event.Status.Verdict != result.VerdictAC {
		t.Fatalf("unexpected event %+v", event)
	}

	producer.err = errors.New("broker down")
	if err := pub.PublishFinalStatus(context.Background(), status); !appErr.Is(err, appErr.QueuePublishFailed) {
		t.Fatalf("expected QueuePublishFailed, got %v", err)
	}
	if err := NewMQStatusEventPublisher(producer, "").PublishFinalStatus(context.Background(), status); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestMQJudgeQueue(t *testing.T) {
	producer := &fakeProducer{}
	queue := NewMQJudgeQueue(producer, "judge.submit", 5)

	msg := model.JudgeMessage{SubmissionID: 3, ProblemID: 1, UserID: 2, Language: "python"}
	if err := queue.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if producer.topic != "judge.submit" || producer.msg.ID != "3" || producer.msg.MaxRetries != 5 {
		t.Fatalf("unexpected publish %s %+v", producer.topic, producer.msg)
	}
	decoded, err := DecodeJudgeMessage(producer.msg)
	if err != nil || decoded != msg {
		t.Fatalf("decode: %+v %v", decoded, err)
	}

	if err := queue.Enqueue(context.Background(), model.JudgeMessage{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	producer.err = errors.New("broker down")
	if err := queue.Enqueue(context.Background(), msg); !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}
}

func TestDecodeJudgeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeJudgeMessage(mq.NewMessage([]byte("nope"))); !appErr.Is(err, appErr.InvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
	if _, err := DecodeJudgeMessage(mq.NewMessage([]byte(`{"submission_id":0}`))); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
	if _, err := DecodeJudgeMessage(nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}
