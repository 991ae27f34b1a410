package ratelimit

import (
	"sync"
	"time"
)

// Limiter gates an operation class to a fixed number of executions per
// window, identified by key.
type Limiter interface {
	Allow(key string, maxPerWindow int) bool
}

type windowCount struct {
	start time.Time
	n     int
}

// Windowed is an in-memory keyed fixed-window limiter. Safe for concurrent
// use.
type Windowed struct {
	window time.Duration

	mu     sync.Mutex
	counts map[string]*windowCount
	now    func() time.Time
}

// NewWindowed constructs a limiter with the given window length.
func NewWindowed(window time.Duration) *Windowed {
	if window <= 0 {
		window = time.Minute
	}
	return &Windowed{
		window: window,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

// Allow records an execution attempt for key and reports whether it may
// proceed. A non-positive maxPerWindow disables limiting for the key.
func (l *Windowed) Allow(key string, maxPerWindow int) bool {
	if maxPerWindow <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count, ok := l.counts[key]
	if !ok || now.Sub(count.start) >= l.window {
		l.counts[key] = &windowCount{start: now, n: 1}
		return true
	}

	if count.n >= maxPerWindow {
		return false
	}
	count.n++
	return true
}

var _ Limiter = (*Windowed)(nil)
