// Package ratelimit counts login attempts in fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether another attempt under key is allowed.
type Limiter interface {
	// Allow records an attempt and reports whether it is within budget.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset forgets all attempts under key.
	Reset(ctx context.Context, key string) error
}

type window struct {
	count int
	until time.Time
}

// Memory is a process-local Limiter. Use Redis when several API instances
// share traffic.
type Memory struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	entries map[string]window
}

var _ Limiter = (*Memory)(nil)

func NewMemory(max int, win time.Duration) *Memory {
	return &Memory{
		max:     max,
		window:  win,
		now:     time.Now,
		entries: make(map[string]window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.max <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	w := m.entries[key]
	if !now.Before(w.until) {
		w = window{until: now.Add(m.window)}
		m.sweep(now)
	}
	w.count++
	m.entries[key] = w
	return w.count <= m.max, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// sweep drops expired windows. Caller holds the lock.
func (m *Memory) sweep(now time.Time) {
	for k, w := range m.entries {
		if !now.Before(w.until) {
			delete(m.entries, k)
		}
	}
}
