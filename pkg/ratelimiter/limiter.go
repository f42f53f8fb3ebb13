package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket over golang.org/x/time/rate.
type RateLimiter struct {
	limiter *rate.Limiter
	burst   int
	rps     int
}

// NewRateLimiterFromRPS creates a limiter refilling rps tokens per second.
func NewRateLimiterFromRPS(rps int, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = rps
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		burst:   burst,
		rps:     rps,
	}
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

func (rl *RateLimiter) TryAcquire() bool {
	return rl.limiter.Allow()
}

func (rl *RateLimiter) GetStats() (available, capacity int, rateDuration time.Duration) {
	available = int(rl.limiter.Tokens())
	if available < 0 {
		available = 0
	}
	capacity = rl.burst
	rateDuration = time.Second / time.Duration(rl.rps)
	return
}

// PooledRateLimiter keeps one bucket per endpoint so chains sharing a
// provider host do not starve each other.
type PooledRateLimiter struct {
	limiters map[string]*RateLimiter
	mutex    sync.RWMutex
	rps      int
	burst    int
}

func NewPooledRateLimiter(rps int, burst int) *PooledRateLimiter {
	return &PooledRateLimiter{
		limiters: make(map[string]*RateLimiter),
		rps:      rps,
		burst:    burst,
	}
}

func (p *PooledRateLimiter) Wait(ctx context.Context, node string) error {
	return p.getLimiter(node).Wait(ctx)
}

func (p *PooledRateLimiter) TryAcquire(node string) bool {
	return p.getLimiter(node).TryAcquire()
}

func (p *PooledRateLimiter) getLimiter(node string) *RateLimiter {
	p.mutex.RLock()
	limiter, exists := p.limiters[node]
	p.mutex.RUnlock()
	if exists {
		return limiter
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if limiter, exists := p.limiters[node]; exists {
		return limiter
	}
	limiter = NewRateLimiterFromRPS(p.rps, p.burst)
	p.limiters[node] = limiter
	return limiter
}

func (p *PooledRateLimiter) GetStats() map[string]map[string]any {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := make(map[string]map[string]any)
	for node, limiter := range p.limiters {
		available, capacity, rate := limiter.GetStats()
		stats[node] = map[string]any{
			"available_tokens": available,
			"capacity":         capacity,
			"rate_ms":          rate.Milliseconds(),
		}
	}
	return stats
}
