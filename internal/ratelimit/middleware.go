package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/metrics"
)

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client IP. Put chi's RealIP middleware in front of
// it when running behind a proxy.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the per-key budget with 429 and a
// Retry-After header. keyType labels the rejection metric.
func Middleware(store *Store, keyType string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			l := store.limiter(k)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimitRejections.WithLabelValues(keyType).Inc()
			logging.FromContext(r.Context()).Warn("rate limit exceeded", "key_type", keyType, "path", r.URL.Path)

			secs := int(math.Ceil(l.RetryAfter().Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
		})
	}
}
