// Package inflight keeps at most one run per operator identifier.
package inflight

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker admits runs keyed by operator identifier.
type Tracker interface {
	// Acquire admits key if it is not already running and the tracker has
	// room. The returned release must be called exactly once when the run ends.
	Acquire(ctx context.Context, key string) (release func(), err error)

	// Running reports whether key currently holds a slot.
	Running(ctx context.Context, key string) bool

	// Active returns the number of held slots.
	Active() int64
}

type inMemoryTracker struct {
	mu        sync.Mutex
	running   map[string]time.Time // key -> admitted at
	maxActive int                  // 0 or negative = unbounded
	active    atomic.Int64
}

// New creates an in-memory tracker.
func New(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxActive: 4,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.running = make(map[string]time.Time)
	return t
}

// Key normalizes an operator identifier so case and surrounding spaces do
// not yield separate slots.
func Key(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (t *inMemoryTracker) Acquire(_ context.Context, key string) (func(), error) {
	key = Key(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.running[key]; busy {
		return nil, ErrBusy
	}
	if t.maxActive > 0 && len(t.running) >= t.maxActive {
		return nil, ErrFull
	}
	t.running[key] = time.Now()
	t.active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() { t.release(key) })
	}, nil
}

func (t *inMemoryTracker) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; ok {
		delete(t.running, key)
		t.active.Add(-1)
	}
}

func (t *inMemoryTracker) Running(_ context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.running[Key(key)]
	return ok
}

func (t *inMemoryTracker) Active() int64 {
	return t.active.Load()
}
