// Package queue carries progress events from a single producer (the solver
// loop) to a single consumer (a relay) in order.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/metrics"
)

// Event is the payload type flowing through the queue.
type Event = model.ProgressEvent

// Queue is an ordered FIFO with non-blocking enqueue and bounded-wait poll.
type Queue interface {
	// Enqueue appends an event. It never blocks. Returns false if the queue
	// is closed or the event was dropped because a bounded queue is full.
	Enqueue(ctx context.Context, e Event) bool

	// Poll waits up to wait for the next event. An idle wait returns
	// ok=false with a nil error; that is not end of stream. Once the queue
	// is closed and drained Poll returns ErrClosed.
	Poll(ctx context.Context, wait time.Duration) (e Event, ok bool, err error)

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops further enqueues. Queued events remain pollable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue over a slice guarded by a mutex.
type InMemoryQueue struct {
	mu       sync.Mutex
	items    []Event
	capacity int // 0 = unbounded
	closed   bool
	notify   chan struct{}
	done     chan struct{}
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// essential events are never dropped by a full bounded queue.
func essential(e Event) bool {
	return e.Stage.Terminal() || e.Stage == model.StageClosed
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(_ context.Context, e Event) bool { //nolint:gocritic // events are small values
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if q.capacity > 0 && len(q.items) >= q.capacity && !essential(e) {
		q.mu.Unlock()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	q.items = append(q.items, e)
	size := len(q.items)
	q.mu.Unlock()

	metrics.RecordQueueEnqueue()
	metrics.UpdateQueueSize(size)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Poll returns the next event, waiting up to wait for one to arrive.
func (q *InMemoryQueue) Poll(ctx context.Context, wait time.Duration) (Event, bool, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if e, ok, err := q.pop(); ok || err != nil {
			return e, ok, err
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		}
		select {
		case <-q.notify:
		case <-q.done:
		case <-timer.C:
			// one last look so an event racing the timer is not missed
			return q.pop()
		case <-ctx.Done():
			return Event{}, false, ctx.Err()
		}
	}
}

func (q *InMemoryQueue) pop() (Event, bool, error) {
	q.mu.Lock()
	if len(q.items) == 0 {
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false, ErrClosed
		}
		return Event{}, false, nil
	}
	e := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	size := len(q.items)
	q.mu.Unlock()

	metrics.RecordQueueDequeue()
	metrics.UpdateQueueSize(size)
	return e, true, nil
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes a waiting consumer.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
