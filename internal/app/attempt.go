package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// scoreDriftTolerance is how far the local average may differ from the
// vendor's final_result before it is logged.
const scoreDriftTolerance = 0.5

// RunAttempt logs in, makes sure the answer cache is populated, answers one
// graded session so that target percent of it is correct, and returns the
// vendor result with the locally derived counts. A nil target answers
// everything correctly.
func (s *Service) RunAttempt(ctx context.Context, auth Authenticator, target *int) (model.AttemptResult, error) {
	if err := targeting.ValidateTarget(target); err != nil {
		return model.AttemptResult{}, err
	}
	if s.cache == nil {
		return model.AttemptResult{}, ErrNoCache
	}

	start := time.Now()
	s.attemptsTotal.Add(1)
	res, err := s.runAttempt(ctx, auth, target)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.attemptsFailed.Add(1)
		metrics.RecordAttempt("failed", elapsed)
		return model.AttemptResult{}, err
	}
	metrics.RecordAttempt("ok", elapsed)
	s.recordKnowledge(res.UserKnowledge)
	return res, nil
}

func (s *Service) runAttempt(ctx context.Context, auth Authenticator, target *int) (model.AttemptResult, error) {
	sess, err := auth.Authenticate(ctx)
	if err != nil {
		return model.AttemptResult{}, err
	}

	if err := s.EnsureCatalog(ctx, sess); err != nil {
		return model.AttemptResult{}, err
	}

	sessionID, err := sess.BeginQuiz(ctx)
	if err != nil {
		return model.AttemptResult{}, err
	}
	items, err := sess.FetchItems(ctx, sessionID)
	if err != nil {
		return model.AttemptResult{}, err
	}

	plan, err := s.planner.Plan(ctx, items, target, s.cache)
	if err != nil {
		return model.AttemptResult{}, err
	}

	for i, sub := range plan.Submissions {
		if err := sess.SubmitAnswer(ctx, sub); err != nil {
			return model.AttemptResult{}, fmt.Errorf("submit item %d/%d: %w", i+1, len(plan.Submissions), err)
		}
	}

	res, err := sess.Finalize(ctx, sessionID)
	if err != nil {
		return model.AttemptResult{}, err
	}

	summary := targeting.Summarize(plan.Submissions)
	summary.Apply(&res)
	res.IntegrityGaps = len(plan.Gaps)
	res.Details = plan.Submissions

	metrics.RecordAnswers("wrong", plan.Wrong())
	metrics.RecordAnswers("correct", summary.Correct-len(plan.Gaps))
	metrics.RecordAnswers("gap", len(plan.Gaps))

	if res.FinalResult != nil && math.Abs(res.FinalResult.Float64()-res.AverageScore) > scoreDriftTolerance {
		s.logger.Warn(ctx, "vendor score differs from local average",
			logger.String("session_id", sessionID),
			logger.Float64("final_result", res.FinalResult.Float64()),
			logger.Float64("average_score", res.AverageScore),
			logger.Int("integrity_gaps", res.IntegrityGaps),
		)
	}

	s.logger.Info(ctx, "attempt finished",
		logger.String("session_id", sessionID),
		logger.Int("items", summary.Total),
		logger.Int("wrong", plan.Wrong()),
		logger.Float64("average_score", res.AverageScore),
		logger.Float64("user_knowledge", res.UserKnowledge),
	)
	return res, nil
}

// EnsureCatalog fills the answer cache from a browse session unless a previous
// run already did. Concurrent callers populate at most once.
func (s *Service) EnsureCatalog(ctx context.Context, sess Session) error {
	if s.cache == nil {
		return ErrNoCache
	}
	s.populateMu.Lock()
	defer s.populateMu.Unlock()

	populated, err := s.cache.IsPopulated(ctx)
	if err != nil {
		return fmt.Errorf("cache state: %w", err)
	}
	if populated {
		return nil
	}

	if p, ok := sess.(preloader); ok {
		if err := p.PreloadCategories(ctx); err != nil {
			s.logger.Warn(ctx, "category preload failed", logger.Error(err))
		}
	}

	items, err := sess.PopulateCatalog(ctx)
	if err != nil {
		return err
	}
	stored, err := s.cache.Populate(ctx, items)
	if err != nil {
		return fmt.Errorf("populate cache: %w", err)
	}
	s.logger.Info(ctx, "answer cache populated",
		logger.Int("fetched", len(items)),
		logger.Int("stored", stored),
	)
	return nil
}
