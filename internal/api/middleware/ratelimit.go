package middleware

import (
	"net"
	"net/http"
	"time"

	"settlement/internal/metrics"
	"settlement/pkg/ratelimit"
)

// RateLimit ограничивает клиентские запросы по IP. Внутренние запросы
// не ограничиваются. rate <= 0 отключает лимит.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	if rate <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := ratelimit.NewKeyedLimiter(rate, float64(burst), 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsInternal(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(clientIP(r)) {
				metrics.RecordRejection("rate_limit")
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
