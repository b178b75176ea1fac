package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// Limiter is the subset of ratelimit.Window the middleware needs.
type Limiter interface {
	CheckAndRecord(key string) error
	RetryAfter(key string) time.Duration
}

// RateLimit throttles requests per client IP and answers rejected ones with
// 429 and a Retry-After header.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if err := l.CheckAndRecord(ip); err != nil {
				if wait := l.RetryAfter(ip); wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests. Please try again later."}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
