package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"a11yscan/pkg/metrics"
	"a11yscan/pkg/ratelimit"
)

// LimitPolicy describes one rate-limit policy applied by WithRateLimit.
type LimitPolicy struct {
	// Name namespaces the counter keys.
	Name string
	// Limit is the maximum number of requests per window.
	Limit int
	// Window is the fixed window size.
	Window time.Duration
	// KeyFunc extracts the identifier from the request (organization id,
	// client IP). An empty identifier bypasses the limit.
	KeyFunc func(r *http.Request) string
}

// WithRateLimit returns a middleware enforcing a fixed-window limit with the
// given counter. Requests over the limit get 429 with a JSON error body.
func WithRateLimit(counter ratelimit.Counter, policy LimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := policy.KeyFunc(r)
			if identifier == "" || policy.Limit <= 0 {
				next.ServeHTTP(w, r)

				return
			}

			count := counter.Increment(ratelimit.Key(policy.Name, identifier), policy.Window)
			if count > policy.Limit {
				metrics.RateLimited.WithLabelValues(policy.Name).Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", policy.Window.String())
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "RATE_LIMITED",
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
