package auth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SignInLimiter is a token bucket per sign in identifier
type SignInLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*limiterBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewSignInLimiter allows perMinute attempts per identifier with the given
// burst. Buckets idle for longer than ten minutes are dropped.
func NewSignInLimiter(perMinute, burst int) *SignInLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &SignInLimiter{
		buckets: make(map[string]*limiterBucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether an attempt for key may proceed now
func (l *SignInLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	key = strings.ToLower(strings.TrimSpace(key))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &limiterBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now

	return b.lim.AllowN(now, 1)
}

func (l *SignInLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}
