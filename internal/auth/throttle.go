// ABOUTME: Per-key token bucket throttle for login attempts
// ABOUTME: Idle limiters are swept periodically so the map does not grow without bound

package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle limits attempts per key. Callers namespace their keys, e.g.
// "ip:" plus the connection address or "email:" plus the normalized email.
type LoginThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLoginThrottle allows perMinute sustained attempts with the given burst.
func NewLoginThrottle(perMinute float64, burst int) *LoginThrottle {
	if burst < 1 {
		burst = 1
	}
	return &LoginThrottle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether another attempt for key may proceed now.
func (t *LoginThrottle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.limiters[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle for longer than maxIdle. Returns how many were dropped.
func (t *LoginThrottle) Sweep(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxIdle)
	dropped := 0
	for key, e := range t.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(t.limiters, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle limiters every interval until ctx is done.
func (t *LoginThrottle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(interval)
		}
	}
}
