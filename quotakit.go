// Package quotakit provides daily quota accounting for per-user, per-tier
// billable operations.
//
// A Cache atomically tracks how many operations a user has performed during
// the current UTC calendar day, enforces a hard ceiling, and resets at UTC
// midnight. Counters live in Redis when configured (shared across instances)
// with a transparent per-call fallback to an in-memory store when Redis is
// unreachable. Callers never see which backend served a call.
//
//	cache, err := quotakit.New(quotakit.Config{RedisURL: "localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Shutdown()
//
//	res, err := cache.IncrementUsage(ctx, userID, "standard", 100)
//	if err != nil {
//	    // caller bug: empty user ID or negative limit
//	}
//	if !res.Success {
//	    // over quota: reject with 429, res.RemainingCalls is 0
//	}
//
// The limit is a per-call parameter, never stored configuration: mapping a
// subscription tier and operation category to a concrete limit belongs to the
// caller.
//
// When no Redis is configured and the service runs as multiple processes,
// each process enforces its quota independently, so the effective global
// limit is multiplied by the process count. This is an accepted property of
// the in-memory store, not a bug.
package quotakit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nhalm/canonlog"

	"github.com/nhalm/quotakit/store"
	"github.com/nhalm/quotakit/utcday"
)

// Caller input errors. These indicate caller bugs rather than runtime
// conditions; quota exhaustion is never an error.
var (
	ErrEmptyUserID   = errors.New("quotakit: empty user ID")
	ErrEmptyProvider = errors.New("quotakit: empty provider type")
	ErrNegativeLimit = errors.New("quotakit: negative limit")
)

// UsageResult is the outcome of a quota operation. It is computed per call
// and never persisted.
type UsageResult struct {
	// Success is the admission decision. For IncrementUsage it is false
	// exactly when the recorded count exceeds the limit; a limit of zero
	// always yields false.
	Success bool `json:"success"`

	// CurrentCount is the stored count after the operation. Under a race it
	// may transiently exceed Limit; it is reported as stored, never clamped.
	CurrentCount int64 `json:"current_count"`

	// Limit echoes the limit the decision was made against.
	Limit int64 `json:"limit"`

	// RemainingCalls is max(0, Limit - CurrentCount).
	RemainingCalls int64 `json:"remaining_calls"`
}

// CacheStats is operator introspection for a Cache.
type CacheStats struct {
	// MemoryEntries is the live entry count of the in-memory store. The
	// in-memory store can hold fallback state even when Redis is primary.
	MemoryEntries int `json:"memory_entries"`

	// RedisAvailable reports whether Redis is configured and currently
	// admitting calls.
	RedisAvailable bool `json:"redis_available"`

	// Backend is the primary backend for new calls: "redis" or "memory".
	Backend string `json:"backend"`
}

// durableStore is the shared backend with availability introspection.
// Satisfied by store.Breaker.
type durableStore interface {
	store.Store
	Available() bool
}

// Cache is the daily quota accounting engine. Construct one per process with
// New and share it across goroutines; all methods are safe for concurrent
// use.
type Cache struct {
	durable durableStore // nil when Redis is not configured or was unreachable at startup
	local   *store.Memory

	closeOnce sync.Once
	closeErr  error
}

// New creates a quota Cache from the given configuration.
//
// When cfg.RedisURL is set and reachable, Redis is the primary backend and
// the in-memory store serves as the per-call fallback. When RedisURL is
// empty, Redis is disabled, or the server is unreachable at startup, the
// Cache runs in-memory only for the process lifetime.
//
// Returns an error only for invalid configuration; an unreachable Redis is
// an availability condition, not a construction failure.
func New(cfg Config) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		local: store.NewMemory(),
	}

	if cfg.RedisURL != "" && !cfg.DisableRedis {
		rs, err := store.NewRedis(store.RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
		})
		if err != nil {
			slog.Warn("quota cache running in-memory only",
				slog.String("redis_url", cfg.RedisURL),
				slog.Any("error", err))
		} else {
			c.durable = store.NewBreaker(rs, store.DefaultBreakerConfig("quota-redis"))
		}
	}

	return c, nil
}

// IncrementUsage atomically records one billable operation for the user and
// provider type against today's UTC-day counter and returns the admission
// decision.
//
// The counter is incremented first and compared to the limit after, so a
// concurrent reader can transiently observe a count above the limit. A call
// that lands past the limit is denied and its increment compensated on the
// same backend, so the settled count never exceeds the limit. The counter
// expires at the next UTC midnight either way. If Redis errors, the call is
// transparently served by the in-memory store and the outage never surfaces
// as a failed quota check.
//
// Returns an error only for caller bugs: empty userID or provider, or a
// negative limit. A limit of zero is valid and always denies.
func (c *Cache) IncrementUsage(ctx context.Context, userID, provider string, limit int) (UsageResult, error) {
	if err := checkArgs(userID, provider, limit); err != nil {
		return UsageResult{}, err
	}

	key := usageKey(userID, provider)
	ttl := time.Duration(utcday.SecondsUntilMidnight()) * time.Second

	count, backend, err := c.increment(ctx, key, ttl)
	if err != nil {
		return UsageResult{}, err
	}

	if count > int64(limit) {
		settled, derr := backend.Decrement(ctx, key)
		if derr != nil {
			logError(ctx, fmt.Errorf("quota overshoot compensation: %w", derr))
			settled = count - 1
		}
		quotaDecisionsTotal.WithLabelValues(provider, outcomeDenied).Inc()
		return UsageResult{
			Success:        false,
			CurrentCount:   settled,
			Limit:          int64(limit),
			RemainingCalls: max(0, int64(limit)-settled),
		}, nil
	}

	quotaDecisionsTotal.WithLabelValues(provider, outcomeAllowed).Inc()
	return UsageResult{
		Success:        true,
		CurrentCount:   count,
		Limit:          int64(limit),
		RemainingCalls: max(0, int64(limit)-count),
	}, nil
}

// GetCurrentUsage returns today's usage for the user and provider type
// without mutating state. An absent counter reads as zero and is never
// created as a side effect. Success reports whether a further call would be
// admitted; the snapshot may be stale by the time the caller acts on it.
func (c *Cache) GetCurrentUsage(ctx context.Context, userID, provider string, limit int) (UsageResult, error) {
	if err := checkArgs(userID, provider, limit); err != nil {
		return UsageResult{}, err
	}

	key := usageKey(userID, provider)

	count, err := c.read(ctx, key)
	if err != nil {
		return UsageResult{}, err
	}

	return UsageResult{
		Success:        count < int64(limit),
		CurrentCount:   count,
		Limit:          int64(limit),
		RemainingCalls: max(0, int64(limit)-count),
	}, nil
}

// ResetUsage deletes today's counter for the user and provider type. Other
// provider types, other users, and other days are unaffected. The in-memory
// store is cleared as well, since it can hold fallback state for the same
// key.
func (c *Cache) ResetUsage(ctx context.Context, userID, provider string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if provider == "" {
		return ErrEmptyProvider
	}

	key := usageKey(userID, provider)

	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}

	if c.durable != nil {
		if err := c.durable.Delete(ctx, key); err != nil {
			logError(ctx, fmt.Errorf("quota reset on durable store: %w", err))
			return fmt.Errorf("reset usage for %s: %w", key, err)
		}
	}
	return nil
}

// Stats returns operator introspection: the in-memory entry count and
// whether Redis is currently available.
func (c *Cache) Stats() CacheStats {
	redisUp := c.durable != nil && c.durable.Available()

	backend := "memory"
	if redisUp {
		backend = "redis"
	}

	return CacheStats{
		MemoryEntries:  c.local.Len(),
		RedisAvailable: redisUp,
		Backend:        backend,
	}
}

// Shutdown stops the in-memory sweep goroutine and closes the Redis
// connection. Safe to call more than once; later calls return the first
// result. Using the Cache after Shutdown is a caller error: Redis calls fail
// and degrade to in-memory counting with the sweep stopped.
func (c *Cache) Shutdown() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.local.Close()
		if c.durable != nil {
			if err := c.durable.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}

// increment runs the atomic increment on the primary backend, falling back
// to the in-memory store for this call only when the durable store errors.
// The backend that served the call is returned so a compensating decrement
// lands on the same counter the increment touched.
func (c *Cache) increment(ctx context.Context, key string, ttl time.Duration) (int64, store.Store, error) {
	if c.durable != nil {
		count, err := c.durable.Increment(ctx, key, ttl)
		if err == nil {
			return count, c.durable, nil
		}
		c.noteFallback(ctx, err)
	}
	count, err := c.local.Increment(ctx, key, ttl)
	return count, c.local, err
}

func (c *Cache) read(ctx context.Context, key string) (int64, error) {
	if c.durable != nil {
		count, err := c.durable.Get(ctx, key)
		if err == nil {
			return count, nil
		}
		c.noteFallback(ctx, err)
	}
	return c.local.Get(ctx, key)
}

func (c *Cache) noteFallback(ctx context.Context, err error) {
	quotaFallbacksTotal.Inc()
	if _, ok := canonlog.TryGetLogger(ctx); ok {
		canonlog.ErrorAdd(ctx, fmt.Errorf("quota store fallback: %w", err))
		canonlog.InfoAdd(ctx, "quota_backend", "memory")
	}
}

// logError attaches the error to the request's canonical log line when one
// is active.
func logError(ctx context.Context, err error) {
	if _, ok := canonlog.TryGetLogger(ctx); ok {
		canonlog.ErrorAdd(ctx, err)
	}
}

func checkArgs(userID, provider string, limit int) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if provider == "" {
		return ErrEmptyProvider
	}
	if limit < 0 {
		return ErrNegativeLimit
	}
	return nil
}

// usageKey builds the day-scoped counter key. Keys are namespaced per UTC
// day; a prior day's key is inert and never reused.
func usageKey(userID, provider string) string {
	var sb strings.Builder
	date := utcday.Today()
	sb.Grow(len(userID) + 1 + len(provider) + 1 + len(date))
	sb.WriteString(userID)
	sb.WriteByte(':')
	sb.WriteString(provider)
	sb.WriteByte(':')
	sb.WriteString(date)
	return sb.String()
}
