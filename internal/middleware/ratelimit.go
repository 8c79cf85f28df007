package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig configures a global token bucket.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

const rateLimitedBody = `{"error":{"kind":"rate_limited","message":"rate limit exceeded"}}`

// RateLimitMiddleware rejects requests with 429 once the bucket is empty.
// A disabled or zero-sized configuration passes every request through.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newTokenBucket(cfg.RPS, cfg.Burst, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rateLimitedBody))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

func newTokenBucket(rps float64, burst int, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		rate:   rps,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   now(),
		now:    now,
	}
}

// Allow takes one token, refilling at rate per second up to burst.
func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
