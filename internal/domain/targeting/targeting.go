// Package targeting decides which quiz items to answer wrongly so an attempt
// lands on a requested score.
package targeting

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
)

// DefaultWrongAnswer is submitted for items picked to be wrong.
const DefaultWrongAnswer = "0000"

// AnswerSource resolves the correct answer for a catalog id. ok is false when
// the id was never cached.
type AnswerSource interface {
	Lookup(ctx context.Context, catalogID model.ID) (answer string, ok bool, err error)
}

// AnswerSourceFunc adapts a function to AnswerSource.
type AnswerSourceFunc func(ctx context.Context, catalogID model.ID) (string, bool, error)

// Lookup implements AnswerSource.
func (f AnswerSourceFunc) Lookup(ctx context.Context, catalogID model.ID) (string, bool, error) {
	return f(ctx, catalogID)
}

// ValidateTarget rejects targets outside [0, 100]. A nil target is valid.
func ValidateTarget(target *int) error {
	if target == nil {
		return nil
	}
	if *target < 0 || *target > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, *target)
	}
	return nil
}

// WrongCount returns how many of total items must be answered wrongly to
// score target percent. A nil target means none. The result is always in
// [0, total].
func WrongCount(total int, target *int) int {
	if total <= 0 || target == nil {
		return 0
	}
	correct := total * *target / 100
	wrong := total - correct
	switch {
	case wrong < 0:
		return 0
	case wrong > total:
		return total
	}
	return wrong
}

// Sample picks k distinct indices from [0, n) uniformly at random (Floyd's
// algorithm) and returns them sorted. k is clamped to [0, n].
func Sample(rng *rand.Rand, n, k int) []int {
	if n <= 0 || k <= 0 {
		return []int{}
	}
	if k > n {
		k = n
	}
	chosen := make(map[int]struct{}, k)
	for j := n - k; j < n; j++ {
		t := rng.Intn(j + 1)
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
	}
	out := make([]int, 0, k)
	for i := range chosen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Plan is the full answer sheet for one attempt.
type Plan struct {
	Submissions    []model.AnswerSubmission
	WrongPositions []int
	// Gaps lists catalog ids that had no cached answer.
	Gaps []model.ID
}

// Wrong is the number of deliberately wrong answers.
func (p Plan) Wrong() int { return len(p.WrongPositions) }

// Option configures a Planner.
type Option func(*Planner)

// WithWrongAnswer overrides the sentinel submitted for wrong items.
func WithWrongAnswer(answer string) Option {
	return func(p *Planner) {
		if answer != "" {
			p.wrongAnswer = answer
		}
	}
}

// WithRand sets the random source. Useful for reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(p *Planner) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

// Planner builds answer sheets. It is safe for concurrent use.
type Planner struct {
	mu          sync.Mutex
	rng         *rand.Rand
	wrongAnswer string
	log         logger.Logger
}

// NewPlanner creates a Planner seeded from the clock.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // selection, not security
		wrongAnswer: DefaultWrongAnswer,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("targeting")
	}
	return p
}

// WrongAnswer returns the configured sentinel.
func (p *Planner) WrongAnswer() string { return p.wrongAnswer }

// Plan answers every item: the sampled positions get the wrong sentinel, the
// rest get the cached answer. A missing cache entry is an integrity gap and
// degrades to an empty answer. Lookup errors abort the plan.
func (p *Planner) Plan(ctx context.Context, items []model.QuizItem, target *int, src AnswerSource) (Plan, error) {
	if err := ValidateTarget(target); err != nil {
		return Plan{}, err
	}
	total := len(items)
	wrong := WrongCount(total, target)

	p.mu.Lock()
	positions := Sample(p.rng, total, wrong)
	p.mu.Unlock()

	wrongSet := make(map[int]struct{}, len(positions))
	for _, i := range positions {
		wrongSet[i] = struct{}{}
	}

	plan := Plan{
		Submissions:    make([]model.AnswerSubmission, 0, total),
		WrongPositions: positions,
	}
	for i, item := range items {
		sub := model.AnswerSubmission{InstanceID: item.InstanceID, CatalogID: item.CatalogID}
		if _, isWrong := wrongSet[i]; isWrong {
			sub.Given = p.wrongAnswer
			plan.Submissions = append(plan.Submissions, sub)
			continue
		}
		answer, ok, err := src.Lookup(ctx, item.CatalogID)
		if err != nil {
			return Plan{}, fmt.Errorf("lookup %s: %w", item.CatalogID, err)
		}
		if !ok {
			plan.Gaps = append(plan.Gaps, item.CatalogID)
			p.log.Warn(ctx, "catalog id missing from answer cache",
				logger.String("catalog_id", item.CatalogID.String()),
				logger.String("item_id", item.InstanceID.String()))
		}
		sub.Given = answer
		sub.Correct = true
		plan.Submissions = append(plan.Submissions, sub)
	}
	return plan, nil
}

// Summary holds the figures derived from a submission list.
type Summary struct {
	Total     int
	Correct   int
	Incorrect int
	Average   float64
}

// Summarize counts correct and incorrect submissions. Average is
// Correct/Total*100, or 0 for an empty list.
func Summarize(subs []model.AnswerSubmission) Summary {
	s := Summary{Total: len(subs)}
	for _, sub := range subs {
		if sub.Correct {
			s.Correct++
		}
	}
	s.Incorrect = s.Total - s.Correct
	if s.Total > 0 {
		s.Average = float64(s.Correct) / float64(s.Total) * 100
	}
	return s
}

// Apply copies the summary onto a result.
func (s Summary) Apply(r *model.AttemptResult) {
	r.TotalItems = s.Total
	r.CorrectItems = s.Correct
	r.IncorrectItems = s.Incorrect
	r.AverageScore = s.Average
}
