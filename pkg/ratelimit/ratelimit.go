// Package ratelimit provides fixed-window request counting for per-policy
// rate limits. The counter is process-local: with multiple replicas each
// enforces its own window, which bounds the aggregate at replicas x limit.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter counts events per key within fixed windows.
//
//go:generate mockgen -package mockratelimit -source=ratelimit.go -destination=mock/mockratelimit.go *
type Counter interface {
	// Increment counts one event for key in the window containing now and
	// returns the total for that window including this event.
	Increment(key string, window time.Duration) int
}

// window tracks one key's count inside its current fixed window.
type window struct {
	start time.Time
	count int
}

// Memory is an in-memory fixed-window Counter guarded by a mutex.
type Memory struct {
	mu      sync.Mutex
	windows map[string]window
	// now is injectable for tests.
	now func() time.Time
}

// NewMemory creates an empty in-memory counter.
func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

// Increment counts one event for key and returns the window total. The
// window is fixed: it starts at the first event and resets size seconds
// later, so a burst across the boundary may see up to twice the limit.
func (m *Memory) Increment(key string, size time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= size {
		w = window{start: now}
	}
	w.count++
	m.windows[key] = w

	return w.count
}

// StartSweep launches a goroutine that periodically evicts windows whose
// reset time passed, bounding memory to keys seen within the last window.
// It stops when ctx is canceled.
func (m *Memory) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evict(interval)
			}
		}
	}()
}

func (m *Memory) evict(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		if now.Sub(w.start) >= maxAge {
			delete(m.windows, key)
		}
	}
}

// Key builds the counter key for a policy and an identifier (organization
// id, client IP).
func Key(policy, identifier string) string {
	return policy + ":" + identifier
}
