package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheBasicOps(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	got, err := c.Get(ctx, "missing")
	if err != nil || got != "" {
		t.Fatalf("missing key: got %q, %v", got, err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got != "v" {
		t.Fatalf("unexpected value %q", got)
	}
	if ttl, _ := c.TTL(ctx, "k"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	ok, err := c.SetNX(ctx, "k", "other", time.Minute)
	if err != nil || ok {
		t.Fatalf("setnx on existing key: ok=%v err=%v", ok, err)
	}
	ok, err = c.SetNX(ctx, "fresh", "1", time.Second)
	if err != nil || !ok {
		t.Fatalf("setnx on fresh key: ok=%v err=%v", ok, err)
	}
	mr.FastForward(2 * time.Second)
	if mr.Exists("fresh") {
		t.Fatal("fresh key should have expired")
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key should be deleted")
	}
	if err := c.Del(ctx); err != nil {
		t.Fatalf("empty del: %v", err)
	}
}

func TestNewRedisCacheWithConfigValidation(t *testing.T) {
	if _, err := NewRedisCacheWithConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}

	mr := miniredis.RunT(t)
	cfg := &RedisConfig{Addr: mr.Addr()}
	cfg.ApplyDefaults()
	if cfg.PoolSize != DefaultRedisConfig().PoolSize {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	c, err := NewRedisCacheWithConfig(cfg)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	_ = c.Close()
}

func TestGetWithCached(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}
	isEmpty := func(v int) bool { return v == 0 }
	marshal := func(v int) (string, error) { return strconv.Itoa(v), nil }
	unmarshal := strconv.Atoi

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "answer", time.Minute, time.Second, isEmpty, marshal, unmarshal, fetch)
		if err != nil || got != 42 {
			t.Fatalf("lookup %d: got %d, %v", i, got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one source call, got %d", calls)
	}
	if v, _ := mr.Get("answer"); v != "42" {
		t.Fatalf("cached value %q", v)
	}
}

func TestGetWithCachedEmptyAndError(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	isEmpty := func(v int) bool { return v == 0 }
	marshal := func(v int) (string, error) { return strconv.Itoa(v), nil }

	calls := 0
	empty := func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	}
	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "none", time.Minute, time.Minute, isEmpty, marshal, strconv.Atoi, empty)
		if err != nil || got != 0 {
			t.Fatalf("lookup %d: got %d, %v", i, got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("empty result should be cached, source called %d times", calls)
	}
	if v, _ := mr.Get("none"); v != NullCacheValue {
		t.Fatalf("expected null marker, got %q", v)
	}

	boom := errors.New("boom")
	_, err := GetWithCached(ctx, c, "broken", time.Minute, time.Minute, isEmpty, marshal, strconv.Atoi,
		func(ctx context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if mr.Exists("broken") {
		t.Fatal("errors must not be cached")
	}
}

func TestJitterTTL(t *testing.T) {
	if JitterTTL(0) != 0 {
		t.Fatal("zero ttl stays zero")
	}
	if JitterTTL(5*time.Nanosecond) != 5*time.Nanosecond {
		t.Fatal("tiny ttl has no room for jitter")
	}
	ttl := 10 * time.Minute
	for i := 0; i < 20; i++ {
		got := JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("jittered ttl %v out of range", got)
		}
	}
}
