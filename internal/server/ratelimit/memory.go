package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter held in process memory. Counters
// for lapsed windows are dropped lazily on access and swept when the map
// grows past sweepThreshold.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit  int
	period time.Duration

	now func() time.Time
}

const sweepThreshold = 4096

// NewMemoryLimiter returns a limiter allowing limit calls per period per key.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !w.resetAt.After(now) {
		if len(l.windows) >= sweepThreshold {
			l.sweep(now)
		}
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true, nil
	}

	w.count++
	return w.count <= l.limit, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !w.resetAt.After(now) {
			delete(l.windows, k)
		}
	}
}
