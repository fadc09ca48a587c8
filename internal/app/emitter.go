package service

import (
	"context"

	"github.com/okian/plusolver/internal/adapters/mq/queue"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
)

// Emitter observes progress events in the order the loop produces them.
// Emit must not block on slow consumers and has no way to fail the run.
type Emitter interface {
	Emit(ctx context.Context, e model.ProgressEvent)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, e model.ProgressEvent)

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, e model.ProgressEvent) { f(ctx, e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, model.ProgressEvent) {})

type queueEmitter struct {
	q     queue.Queue
	runID string
	log   logger.Logger
}

// QueueEmitter enqueues events tagged with runID.
func QueueEmitter(q queue.Queue, runID string) Emitter {
	return &queueEmitter{q: q, runID: runID, log: logger.Get().Named("emitter")}
}

func (e *queueEmitter) Emit(ctx context.Context, ev model.ProgressEvent) {
	if ev.Stage != model.StageClosed {
		ev.RunID = e.runID
	}
	if !e.q.Enqueue(ctx, ev) {
		e.log.Debug(ctx, "progress event dropped",
			logger.String("run_id", e.runID),
			logger.String("stage", string(ev.Stage)))
	}
}

type logEmitter struct {
	log logger.Logger
}

// LogEmitter writes one log line per event.
func LogEmitter(l logger.Logger) Emitter {
	if l == nil {
		l = logger.Get().Named("progress")
	}
	return &logEmitter{log: l}
}

func (e *logEmitter) Emit(ctx context.Context, ev model.ProgressEvent) {
	fields := []logger.Field{
		logger.String("stage", string(ev.Stage)),
		logger.Int("progress", ev.Progress),
		logger.Int("attempt", ev.Attempt),
	}
	if ev.RunID != "" {
		fields = append(fields, logger.String("run_id", ev.RunID))
	}
	if ev.UserKnowledge != nil {
		fields = append(fields, logger.Float64("user_knowledge", *ev.UserKnowledge))
	}
	switch ev.Stage {
	case model.StageError:
		e.log.Warn(ctx, ev.Message, append(fields, logger.String("error", ev.Error))...)
	case model.StageClosed:
		e.log.Debug(ctx, "stream closed", fields...)
	default:
		e.log.Info(ctx, ev.Message, fields...)
	}
}

type multiEmitter []Emitter

// MultiEmitter fans each event out to every emitter in order.
func MultiEmitter(emitters ...Emitter) Emitter {
	out := make(multiEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (m multiEmitter) Emit(ctx context.Context, ev model.ProgressEvent) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}
