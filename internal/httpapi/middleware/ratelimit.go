package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiter keeps one token bucket per client key and forgets idle keys.
type limiter struct {
	rate  rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	m         map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newLimiter(r rate.Limit, burst int, ttl time.Duration) *limiter {
	return &limiter{
		rate:  r,
		burst: burst,
		ttl:   ttl,
		m:     make(map[string]*visitor),
		now:   time.Now,
	}
}

func (l *limiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, v := range l.m {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}
	v := l.m[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.rate, l.burst)}
		l.m[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// RateLimit returns a middleware that rate-limits by client IP.
// Example: RateLimit(120, 60) => 120 req/min with burst 60. reqPerMin <= 0
// disables limiting.
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	l := newLimiter(rate.Limit(float64(reqPerMin)/60.0), burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// honor X-Forwarded-For if behind a proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
