package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTimeout = 30 * time.Minute
	pruneEvery         = 256
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier rate limiting using a token bucket.
// Idle entries are pruned periodically so memory stays bounded under
// distributed abuse.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute int
	burst     int
	sinceLast int
}

// NewRateLimiter creates a rate limiter allowing perMinute requests per
// identifier with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow reports whether a request from the identifier is within its budget.
func (rl *RateLimiter) Allow(identifier string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sinceLast++
	if rl.sinceLast >= pruneEvery {
		rl.sinceLast = 0
		rl.prune(now)
	}

	entry, ok := rl.limiters[identifier]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.burst),
		}
		rl.limiters[identifier] = entry
	}
	entry.lastAccess = now

	return entry.limiter.Allow()
}

// prune drops entries idle longer than the timeout. Caller holds the lock.
func (rl *RateLimiter) prune(now time.Time) {
	for identifier, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > limiterIdleTimeout {
			delete(rl.limiters, identifier)
		}
	}
}
