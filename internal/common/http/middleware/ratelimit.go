package middleware

import (
	"sync"
	"time"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitPolicy configures the in-process token buckets.
// A zero rate disables that bucket.
type RateLimitPolicy struct {
	GlobalRPS   float64       `yaml:"globalRps"`
	GlobalBurst int           `yaml:"globalBurst"`
	IPRPS       float64       `yaml:"ipRps"`
	IPBurst     int           `yaml:"ipBurst"`
	IdleTTL     time.Duration `yaml:"idleTtl"`
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one global bucket and one bucket per client IP.
type RateLimiter struct {
	policy RateLimitPolicy
	global *rate.Limiter

	mu      sync.Mutex
	buckets map[string]*ipBucket
	now     func() time.Time
}

// NewRateLimiter builds a limiter for policy.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	rl := &RateLimiter{
		policy:  policy,
		buckets: make(map[string]*ipBucket),
		now:     time.Now,
	}
	if policy.GlobalRPS > 0 {
		rl.global = rate.NewLimiter(rate.Limit(policy.GlobalRPS), burstOf(policy.GlobalBurst, policy.GlobalRPS))
	}
	if rl.policy.IdleTTL <= 0 {
		rl.policy.IdleTTL = 10 * time.Minute
	}
	return rl
}

func burstOf(burst int, rps float64) int {
	if burst > 0 {
		return burst
	}
	if b := int(rps * 2); b > 0 {
		return b
	}
	return 1
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.policy.IPRPS <= 0 {
		return true
	}
	return rl.bucket(ip).Allow()
}

func (rl *RateLimiter) bucket(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rate.Limit(rl.policy.IPRPS), burstOf(rl.policy.IPBurst, rl.policy.IPRPS))}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Sweep drops buckets idle for longer than the policy's IdleTTL.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.policy.IdleTTL)
	removed := 0
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the limit with TooManyRequests.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			response.AbortWithErrorCode(c, appErr.TooManyRequests, "")
			return
		}
		c.Next()
	}
}
