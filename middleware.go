// Daily quota middleware for Chi and standard http.Handler.
//
// The middleware charges one billable operation per request against the
// caller-supplied user/tier/limit mapping and rejects with 429 when the
// day's quota is exhausted. Reset always points at the next UTC midnight.
//
// Example:
//
//	cache, _ := quotakit.New(quotakit.Config{RedisURL: "localhost:6379"})
//	r.Use(cache.Middleware(func(r *http.Request) (string, string, int) {
//	    user := r.Header.Get("X-User-ID")
//	    return user, "standard", 100
//	}))

package quotakit

import (
	"net/http"
	"strconv"

	"github.com/nhalm/canonlog"

	"github.com/nhalm/quotakit/utcday"
)

// QuotaFunc maps a request to the quota identity and limit to charge.
// Mapping a subscription tier and operation category to a concrete limit is
// the application's job; the middleware treats the limit as opaque.
// Returning an empty userID skips quota accounting for that request.
type QuotaFunc func(r *http.Request) (userID, provider string, limit int)

// Middleware returns middleware that charges one operation per request.
// Sets the following headers on every quota-tracked response:
//   - RateLimit-Limit: The daily quota ceiling
//   - RateLimit-Remaining: Operations remaining today
//   - RateLimit-Reset: Unix timestamp of the next UTC midnight
//   - Retry-After: (only when limited) Seconds until the next UTC midnight
//
// Returns 429 (Too Many Requests) when the quota is exhausted and 500
// (Internal Server Error) if the quota check itself fails.
func (c *Cache) Middleware(fn QuotaFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, provider, limit := fn(r)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			res, err := c.IncrementUsage(ctx, userID, provider, limit)
			if err != nil {
				logError(ctx, err)
				http.Error(w, "Quota check failed", http.StatusInternalServerError)
				return
			}

			if _, ok := canonlog.TryGetLogger(ctx); ok {
				canonlog.InfoAddMany(ctx, map[string]any{
					"quota_provider":  provider,
					"quota_count":     res.CurrentCount,
					"quota_remaining": res.RemainingCalls,
				})
			}

			w.Header().Set("RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(res.RemainingCalls, 10))
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(utcday.NextMidnight().Unix(), 10))

			if !res.Success {
				w.Header().Set("Retry-After", strconv.Itoa(utcday.SecondsUntilMidnight()))
				http.Error(w, "Daily quota exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
