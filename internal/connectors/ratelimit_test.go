package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 2})

	require.NoError(t, r.Wait(context.Background()))
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, r.Wait(ctx))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})

	for i := 0; i < 100; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
}

func TestRateLimiter_BackoffBlocksUntilCancelled(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	r.Backoff(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_BackoffExpires(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	r.Backoff(10 * time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRateLimiter_ShorterBackoffKeepsLongerPause(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	r.Backoff(0)
	r.Backoff(time.Millisecond)

	r.mu.Lock()
	remaining := time.Until(r.pausedUntil)
	r.mu.Unlock()
	assert.Greater(t, remaining, DefaultBackoff-time.Second)
}
