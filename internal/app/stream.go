package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/plusolver/internal/adapters/mq/queue"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// Run is a streaming run in progress.
type Run struct {
	ID string
	// Events yields the run's progress in order, ending with the closed
	// event, after which the queue is closed.
	Events queue.Queue
}

// Stream starts a run on its own goroutine and returns its event queue. The
// run is bound to the service lifetime: a client that stops reading does not
// cancel it. ctx only scopes admission. A second run for the same operator,
// or one beyond the active run cap, fails with inflight.ErrBusy.
func (s *Service) Stream(ctx context.Context, auth Authenticator, opts RunOptions) (*Run, error) {
	if err := targeting.ValidateTarget(opts.Target); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	runID := uuid.NewString()
	key := identityOf(auth)
	if key == "" {
		key = runID
	}
	release, err := s.tracker.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueCapacity))
	runLog := s.logger.Named("run")
	emit := MultiEmitter(QueueEmitter(q, runID), LogEmitter(runLog))

	s.runs.Add(1)
	metrics.UpdateRunsActive(int(s.tracker.Active()))
	s.logger.Info(ctx, "streaming run admitted",
		logger.String("run_id", runID),
		logger.Bool("full_knowledge", opts.FullKnowledge))

	runCtx := s.runCtx
	go func() {
		defer s.runs.Done()
		defer func() {
			release()
			metrics.UpdateRunsActive(int(s.tracker.Active()))
		}()
		defer func() { _ = q.Close() }()

		_, _ = s.RunUntilFullKnowledge(runCtx, auth, opts, emit)
	}()

	return &Run{ID: runID, Events: q}, nil
}
