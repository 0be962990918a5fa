package ratelimit

import (
	"context"
	"sync"
	"time"

	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
)

type windowEntry struct {
	count   int
	firstAt time.Time
}

// MemoryLimiter is the single-instance fallback used in development and
// tests when Redis is not configured.
type MemoryLimiter struct {
	clock  clock.Clock
	window time.Duration
	limit  int

	mu      sync.Mutex
	entries map[string]*windowEntry
}

func NewMemoryLimiter(clk clock.Clock, cfg config.RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		clock:   clk,
		window:  cfg.Window,
		limit:   cfg.MaxPerWindow,
		entries: make(map[string]*windowEntry),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	if e == nil || now.Sub(e.firstAt) >= l.window {
		l.entries[key] = &windowEntry{count: 1, firstAt: now}
		l.sweepLocked(now)
		return Decision{Allowed: true}, nil
	}

	e.count++
	if e.count > l.limit {
		return Decision{
			Allowed:    false,
			RetryAfter: l.window - now.Sub(e.firstAt),
		}, nil
	}
	return Decision{Allowed: true}, nil
}

// sweepLocked drops expired windows so the map does not grow without bound.
// Called opportunistically under the lock when a new window starts.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.firstAt) >= l.window {
			delete(l.entries, k)
		}
	}
}
