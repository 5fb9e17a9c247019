package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// adaptiveLimiter paces feed requests. A clean page nudges the rate up by
// 20% (to at most twice the configured rate); a 429 halves it (to at least a
// quarter of the configured rate).
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

func newAdaptiveLimiter(perSecond float64) *adaptiveLimiter {
	if perSecond <= 0 {
		perSecond = 2
	}
	r := rate.Limit(perSecond)
	return &adaptiveLimiter{
		limiter: rate.NewLimiter(r, 1),
		initial: r,
		current: r,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = min(a.current*1.2, a.initial*2)
	a.limiter.SetLimit(a.current)
}

func (a *adaptiveLimiter) onRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = max(a.current*0.5, a.initial/4)
	a.limiter.SetLimit(a.current)
	zap.L().Warn("ingest: feed rate limited, slowing down",
		zap.Float64("rate_per_second", float64(a.current)),
	)
}

func (a *adaptiveLimiter) limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
