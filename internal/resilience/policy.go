package resilience

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/config"
)

// Policy guards outbound calls to external services: each call is retried
// on transient errors, and the whole retry sequence runs behind a per-service
// circuit breaker so a dead feed or webhook fails fast.
type Policy struct {
	retry    RetryConfig
	breakers *breakerSet
}

// NewPolicy builds a Policy from the retry section of the config.
func NewPolicy(c config.RetryConfig) *Policy {
	return NewPolicyWith(NewRetryConfig(c), NewBreakerConfig(c))
}

// NewPolicyWith builds a Policy from explicit retry and breaker settings.
// Only transient failures count toward opening a breaker unless the breaker
// config says otherwise.
func NewPolicyWith(retry RetryConfig, breaker CircuitBreakerConfig) *Policy {
	if breaker.ShouldTrip == nil {
		breaker.ShouldTrip = IsTransient
	}
	return &Policy{retry: retry, breakers: newBreakerSet(breaker)}
}

// Call runs fn for service with retries inside the service's breaker.
func (p *Policy) Call(ctx context.Context, service, operation string, fn func(ctx context.Context) error) error {
	cfg := p.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = logRetry(service, operation)
	}
	cb := p.breakers.get(service)
	err := cb.Execute(ctx, func(ctx context.Context) error {
		return Do(ctx, cfg, fn)
	})
	if errors.Is(err, ErrCircuitOpen) {
		zap.L().Warn("resilience: call rejected, circuit open",
			zap.String("service", service),
			zap.String("operation", operation),
		)
	}
	return err
}

// CallVal is like Call but preserves a return value.
func CallVal[T any](ctx context.Context, p *Policy, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Call(ctx, service, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// States reports the breaker state of every service called so far.
func (p *Policy) States() map[string]CircuitState {
	return p.breakers.states()
}
