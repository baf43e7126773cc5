// Package rate caps how often a caller may repeat an operation, keyed
// by an arbitrary string. It backs the per-user cap on payment status
// checks, so a stuck client cannot hammer the provider APIs.
package rate

import (
	"sync"
	"time"
)

// WindowLimiter allows up to limit calls per key within a fixed window.
// Windows are anchored at the first call, not sliding.
type WindowLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	openedAt time.Time
	calls    int
}

func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:     limit,
		window:    window,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// Allow reports whether the key is still under its limit and counts the
// call when it is.
func (l *WindowLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{openedAt: now, calls: 1}
		return true
	}
	if now.Sub(b.openedAt) >= l.window {
		b.openedAt = now
		b.calls = 1
		return true
	}
	if b.calls >= l.limit {
		return false
	}
	b.calls++
	return true
}

// sweep drops expired buckets at most once per window so idle keys do
// not accumulate.
func (l *WindowLimiter) sweep(now time.Time) {
	if l.window <= 0 {
		return
	}
	if !l.lastSweep.IsZero() && now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.openedAt) >= l.window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
