// Package ratelimit enforces a fixed request window per session.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"retouch/internal/domain"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests for a key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Check runs the limiter and converts a rejection into a RateLimitError.
func Check(ctx context.Context, l Limiter, key string) error {
	if l == nil {
		return nil
	}
	if key == "" {
		key = "anonymous"
	}
	d, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if d.Allowed {
		return nil
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return &domain.RateLimitError{RetryAfter: secs}
}

type bucket struct {
	count int
	until time.Time
}

// Memory is a process-local fixed window limiter.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.until) {
		b = &bucket{until: now.Add(m.window)}
		m.buckets[key] = b
	}
	if b.count >= m.limit {
		return Decision{Allowed: false, RetryAfter: b.until.Sub(now)}, nil
	}
	b.count++
	return Decision{Allowed: true, Remaining: m.limit - b.count}, nil
}

// Sweep drops expired windows.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, b := range m.buckets {
		if !now.Before(b.until) {
			delete(m.buckets, k)
		}
	}
}
