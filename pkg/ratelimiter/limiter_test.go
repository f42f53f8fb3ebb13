package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_WaitsWhenBucketEmpty(t *testing.T) {
	rl := NewRateLimiterFromRPS(10, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx))
	}

	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	rl := NewRateLimiterFromRPS(10, 2)

	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire(), "third token should not be available")

	_, capacity, rate := rl.GetStats()
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 100*time.Millisecond, rate)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewRateLimiterFromRPS(1, 1)
	require.True(t, rl.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestPooledRateLimiter_IndependentNodes(t *testing.T) {
	prl := NewPooledRateLimiter(10, 2)
	ctx := context.Background()

	require.NoError(t, prl.Wait(ctx, "node1"))
	require.NoError(t, prl.Wait(ctx, "node2"))

	assert.True(t, prl.TryAcquire("node1"))
	assert.True(t, prl.TryAcquire("node2"))

	assert.False(t, prl.TryAcquire("node1"))
	assert.False(t, prl.TryAcquire("node2"))

	assert.Len(t, prl.GetStats(), 2)
}
