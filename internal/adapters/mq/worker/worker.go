// Package worker pumps progress events from a queue into a sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/plusolver/internal/adapters/mq/queue"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

const defaultPollInterval = 100 * time.Millisecond

// Event is what the relay moves.
type Event = model.ProgressEvent

// Source is the consuming side of a queue.
type Source interface {
	Poll(ctx context.Context, wait time.Duration) (Event, bool, error)
}

// Sink receives events in order. A failing sink never stops the relay.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, e Event) error { return f(ctx, e) }

// Relay forwards events from a Source to a Sink until the closed sentinel
// has been delivered.
type Relay struct {
	source       Source
	sink         Sink
	name         string
	pollInterval time.Duration

	forwarded atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewRelay creates a relay with configuration options.
func NewRelay(source Source, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		source:       source,
		sink:         sink,
		name:         "relay",
		pollInterval: defaultPollInterval,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named(r.name)
	}
	return r
}

// Run forwards events until closed has been sent. It returns nil after a
// complete stream, ctx.Err() on cancellation, or ErrStopped after Shutdown.
// If the source ends without a closed sentinel, one is sent on its behalf.
func (r *Relay) Run(ctx context.Context) error {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.shutdown:
			return ErrStopped
		default:
		}

		e, ok, err := r.source.Poll(ctx, r.pollInterval)
		switch {
		case errors.Is(err, queue.ErrClosed):
			r.logger.Warn(ctx, "source ended without closed event")
			r.deliver(ctx, model.Closed())
			return nil
		case err != nil:
			return err
		case !ok:
			continue
		}

		r.deliver(ctx, e)
		if e.Stage == model.StageClosed {
			return nil
		}
	}
}

func (r *Relay) deliver(ctx context.Context, e Event) {
	start := time.Now()
	if err := r.sink.Send(ctx, e); err != nil {
		r.failed.Add(1)
		metrics.RecordRelayError()
		metrics.RecordErrorByComponent("relay", "sink")
		r.logger.Debug(ctx, "sink rejected event",
			logger.String("stage", string(e.Stage)),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return
	}
	r.forwarded.Add(1)
	metrics.RecordRelayForwarded()
}

// Shutdown stops the relay and waits for Run to return.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() { close(r.shutdown) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats reports delivered and failed sends.
func (r *Relay) Stats() (forwarded, failed int64) {
	return r.forwarded.Load(), r.failed.Load()
}
