package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowRecord tracks one identifier's current fixed window.
type windowRecord struct {
	count   int
	resetAt time.Time
}

// memoryLimiter implements fixed-window counting in a process-local map.
// It performs no I/O and never suspends. It allows bursts at window
// boundaries, a known tradeoff of the fixed-window algorithm.
type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowRecord
	clock   Clock
}

func newMemoryLimiter(clock Clock) *memoryLimiter {
	return &memoryLimiter{
		windows: make(map[string]*windowRecord),
		clock:   clock,
	}
}

// Check counts one request for id. The n-th request with n == max is still
// allowed; only the (max+1)-th within the window is blocked, and blocking
// never extends the window.
func (m *memoryLimiter) Check(_ context.Context, id string, window time.Duration, max int) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	rec, ok := m.windows[id]
	if !ok || now.After(rec.resetAt) {
		rec = &windowRecord{count: 1, resetAt: now.Add(window)}
		m.windows[id] = rec
		return Decision{
			Allowed:   true,
			Limit:     max,
			Remaining: max - 1,
			ResetAt:   rec.resetAt,
		}, nil
	}

	if rec.count >= max {
		return Decision{
			Allowed:   false,
			Limit:     max,
			Remaining: 0,
			ResetAt:   rec.resetAt,
		}, nil
	}

	rec.count++
	remaining := max - rec.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   rec.resetAt,
	}, nil
}

// Close is a no-op; the in-process backend holds no external resources.
func (m *memoryLimiter) Close() error {
	return nil
}

var _ Limiter = (*memoryLimiter)(nil)
