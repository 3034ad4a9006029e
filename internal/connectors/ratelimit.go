package connectors

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff pauses a source after a 429 that names no retry delay.
const DefaultBackoff = time.Minute

// RateLimitConfig holds the token bucket for one source type.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Rate limits per source type, set below the published API limits.
var (
	// NotionRateLimit follows Notion's average of three requests per second.
	NotionRateLimit = RateLimitConfig{RequestsPerSecond: 2.5, BurstSize: 3}

	// GoogleDocsRateLimit stays under the Docs API per-user write quota.
	GoogleDocsRateLimit = RateLimitConfig{RequestsPerSecond: 1.0, BurstSize: 5}
)

// RateLimiter throttles the reads and writes of one connector. After the
// remote API rejects a request for rate, every caller waits out the backoff.
type RateLimiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewRateLimiter creates a limiter. A non-positive rate means unlimited.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, max(cfg.BurstSize, 1))}
}

// Wait blocks until the backoff has passed and a token is available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	pause := time.Until(r.pausedUntil)
	r.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff pauses the limiter for d, or DefaultBackoff when d is not positive.
// A shorter pause never cuts an existing one short.
func (r *RateLimiter) Backoff(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoff
	}
	until := time.Now().Add(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}
