package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the circuit breaker settings for a wrapped store.
type BreakerConfig struct {
	// Name is the circuit breaker name for logging
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear success/failure counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the circuit (e.g. 0.6)
	FailureThreshold float64

	// MinRequests is the minimum number of requests before the ratio is evaluated
	MinRequests uint32
}

// DefaultBreakerConfig returns settings tuned for a Redis quota backend:
// trip after a majority of calls fail, probe again after 30 seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker wraps a Store with a circuit breaker so that a dead backend fails
// fast instead of imposing a network timeout on every call. Errors still
// surface to the caller either way; the breaker only changes how quickly an
// unavailable backend reports failure.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps the given store with a circuit breaker.
func NewBreaker(inner Store, cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("quota store circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Available reports whether the circuit currently admits calls.
func (b *Breaker) Available() bool {
	return b.cb.State() != gobreaker.StateOpen
}

func (b *Breaker) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.Increment(ctx, key, ttl)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (b *Breaker) Decrement(ctx context.Context, key string) (int64, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.Decrement(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (b *Breaker) Get(ctx context.Context, key string) (int64, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.Get(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Delete(ctx, key)
	})
	return err
}

func (b *Breaker) Close() error {
	return b.inner.Close()
}
