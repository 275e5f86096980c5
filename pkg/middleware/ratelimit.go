package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxBuckets bounds the limiter's memory; idle buckets are swept when it
// is reached.
const maxBuckets = 10000

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is an in-memory token bucket per client key. Each key holds up to
// burst tokens, refilled continuously at perMinute/60 per second.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perMinute int
	burst     float64
	now       func() time.Time
}

func NewLimiter(perMinute int) *Limiter {
	return &Limiter{
		buckets:   make(map[string]*bucket),
		perMinute: perMinute,
		burst:     float64(max(perMinute/6, 1)),
		now:       time.Now,
	}
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.sweep(now)
		}
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * float64(l.perMinute) / 60
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets that have fully refilled; they are
// indistinguishable from new ones.
func (l *Limiter) sweep(now time.Time) {
	refill := time.Duration(l.burst / float64(l.perMinute) * float64(time.Minute))
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= refill {
			delete(l.buckets, key)
		}
	}
}

// RateLimit throttles requests per client IP with 429. A nil limiter
// disables it.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		retryAfter := strconv.Itoa(max(60/max(l.perMinute, 1), 1))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
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
