package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// RunOptions select what a run aims for.
type RunOptions struct {
	// Target is the score percent to aim for; nil answers everything correctly.
	Target *int
	// FullKnowledge repeats attempts until the vendor reports 100% knowledge.
	FullKnowledge bool
	// MaxAttempts overrides the service safety bound when positive.
	MaxAttempts int
}

func (o RunOptions) mode() string {
	if o.FullKnowledge {
		return "full_knowledge"
	}
	return "single"
}

// RunUntilFullKnowledge runs attempts and reports each transition to emit.
// Without FullKnowledge it runs exactly one attempt. With it, attempts repeat
// with the same target until the vendor reports 100% knowledge or the safety
// bound is reached. A failed attempt ends the run. The closed event is always
// emitted last, exactly once.
func (s *Service) RunUntilFullKnowledge(ctx context.Context, auth Authenticator, opts RunOptions, emit Emitter) (model.AttemptResult, error) {
	if emit == nil {
		emit = Discard
	}
	defer s.emit(ctx, emit, model.Closed())

	s.runsStarted.Add(1)
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.maxAttempts
	}

	var (
		last      model.AttemptResult
		knowledge *float64
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, s.fail(ctx, emit, opts, attempt-1, knowledge, err)
		}

		s.emit(ctx, emit, model.ProgressEvent{
			Stage:    model.StageAttemptStart,
			Progress: model.ProgressAttemptStart,
			Message:  fmt.Sprintf("Attempt %d...", attempt),
			Attempt:  attempt,
		})

		res, err := s.RunAttempt(ctx, auth, opts.Target)
		if err != nil {
			return last, s.fail(ctx, emit, opts, attempt, knowledge, err)
		}
		res.Attempt = attempt
		last = res
		knowledge = model.KnowledgePtr(res.UserKnowledge)

		s.emit(ctx, emit, model.ProgressEvent{
			Stage:         model.StageAttemptComplete,
			Progress:      model.ProgressAttemptComplete,
			Message:       fmt.Sprintf("Attempt %d finished. Knowledge: %.2f%%", attempt, res.UserKnowledge),
			Attempt:       attempt,
			UserKnowledge: knowledge,
			Result:        &res,
		})

		if !opts.FullKnowledge || res.FullKnowledge() {
			msg := "Done"
			if opts.FullKnowledge {
				msg = fmt.Sprintf("Done! Reached 100%% knowledge after %d attempts.", attempt)
			}
			s.emit(ctx, emit, model.ProgressEvent{
				Stage:         model.StageFinal,
				Progress:      model.ProgressFinal,
				Message:       msg,
				Attempt:       attempt,
				UserKnowledge: knowledge,
				Result:        &res,
			})
			metrics.RecordRun(opts.mode(), "final")
			metrics.RecordRunAttempts(attempt)
			return res, nil
		}

		if attempt == maxAttempts {
			break
		}
		s.emit(ctx, emit, model.ProgressEvent{
			Stage:         model.StageRetrying,
			Progress:      model.ProgressRetrying,
			Message:       fmt.Sprintf("Knowledge %.2f%% < 100%%. Starting attempt %d...", res.UserKnowledge, attempt+1),
			Attempt:       attempt,
			UserKnowledge: knowledge,
		})
	}

	bound := &SafetyBoundError{Attempts: maxAttempts, LastKnowledge: last.UserKnowledge}
	s.emit(ctx, emit, model.ProgressEvent{
		Stage:         model.StageError,
		Progress:      model.ProgressError,
		Message:       fmt.Sprintf("Reached the maximum of %d attempts. Knowledge: %.2f%%", maxAttempts, last.UserKnowledge),
		Attempt:       maxAttempts,
		UserKnowledge: model.KnowledgePtr(last.UserKnowledge),
		Error:         "Max attempts reached",
	})
	metrics.RecordRun(opts.mode(), "safety_bound")
	metrics.RecordRunAttempts(maxAttempts)
	s.logger.Warn(ctx, "full knowledge not reached",
		logger.Int("attempts", maxAttempts),
		logger.Float64("user_knowledge", last.UserKnowledge))
	return last, bound
}

// Solve runs the loop synchronously while holding the operator's run slot.
func (s *Service) Solve(ctx context.Context, auth Authenticator, opts RunOptions, emit Emitter) (model.AttemptResult, error) {
	if err := targeting.ValidateTarget(opts.Target); err != nil {
		return model.AttemptResult{}, err
	}
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.AttemptResult{}, ErrNotStarted
	}
	key := identityOf(auth)
	if key != "" {
		release, err := s.tracker.Acquire(ctx, key)
		if err != nil {
			return model.AttemptResult{}, err
		}
		defer release()
	}
	metrics.UpdateRunsActive(int(s.tracker.Active()))
	defer func() { metrics.UpdateRunsActive(int(s.tracker.Active())) }()

	return s.RunUntilFullKnowledge(ctx, auth, opts, MultiEmitter(emit, LogEmitter(s.logger)))
}

func (s *Service) fail(ctx context.Context, emit Emitter, opts RunOptions, attempt int, knowledge *float64, err error) error {
	s.emit(ctx, emit, model.ProgressEvent{
		Stage:         model.StageError,
		Progress:      model.ProgressError,
		Message:       "Error: " + err.Error(),
		Attempt:       attempt,
		UserKnowledge: knowledge,
		Error:         err.Error(),
	})

	outcome := "error"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = "canceled"
	}
	metrics.RecordRun(opts.mode(), outcome)
	metrics.RecordErrorByComponent("service", outcome)
	s.logger.Error(ctx, "run failed", logger.Int("attempt", attempt), logger.Error(err))
	return err
}

func (s *Service) emit(ctx context.Context, emit Emitter, ev model.ProgressEvent) {
	metrics.RecordProgressEvent(string(ev.Stage))
	emit.Emit(ctx, ev)
}
