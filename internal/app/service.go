// Package service runs quiz attempts against the vendor and reports their
// progress. It implements the dependencies required by the HTTP API and the
// operator CLI.
package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/plusolver/internal/adapters/repository"
	"github.com/okian/plusolver/internal/domain/inflight"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/internal/domain/types"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

const (
	defaultMaxAttempts   = 50
	defaultPollInterval  = 100 * time.Millisecond
	defaultMaxActiveRuns = 4
)

// Service owns the answer cache and the lifetime of streaming runs.
type Service struct {
	mu sync.RWMutex

	// Core components
	cache   repository.Cache
	planner *targeting.Planner
	tracker inflight.Tracker

	// Configuration
	maxAttempts   int
	queueCapacity int
	pollInterval  time.Duration
	maxActiveRuns int

	// State
	started    bool
	startedAt  time.Time
	runCtx     context.Context
	cancelRuns context.CancelFunc
	runs       sync.WaitGroup
	populateMu sync.Mutex

	runsStarted    atomic.Int64
	attemptsTotal  atomic.Int64
	attemptsFailed atomic.Int64
	lastKnowledge  atomic.Uint64 // math.Float64bits

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache sets the answer cache. The service closes it on Stop.
func WithCache(c repository.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPlanner replaces the answer planner.
func WithPlanner(p *targeting.Planner) Option {
	return func(s *Service) {
		if p != nil {
			s.planner = p
		}
	}
}

// WithMaxAttempts sets the safety bound of a full-knowledge run.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithQueueCapacity bounds each streaming run's event queue. 0 is unbounded.
func WithQueueCapacity(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.queueCapacity = n
		}
	}
}

// WithPollInterval sets the idle wait used by relays draining run queues.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxActiveRuns caps concurrent runs across all operators.
func WithMaxActiveRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxActiveRuns = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		maxAttempts:   defaultMaxAttempts,
		pollInterval:  defaultPollInterval,
		maxActiveRuns: defaultMaxActiveRuns,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.planner == nil {
		s.planner = targeting.NewPlanner()
	}
	s.tracker = inflight.New(inflight.WithMaxActive(s.maxActiveRuns))
	return s
}

// Start prepares the service for runs. Streaming runs are bound to the
// service lifetime, not to the request that started them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.cache == nil {
		return ErrNoCache
	}

	s.runCtx, s.cancelRuns = context.WithCancel(context.WithoutCancel(ctx))
	s.startedAt = time.Now()
	s.started = true

	populated, err := s.cache.IsPopulated(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot read cache state", logger.Error(err))
	}
	s.logger.Info(ctx, "solver service started",
		logger.Int("maxAttempts", s.maxAttempts),
		logger.Int("maxActiveRuns", s.maxActiveRuns),
		logger.Int("queueCapacity", s.queueCapacity),
		logger.Bool("cachePopulated", populated),
	)
	return nil
}

// Stop cancels running streams, waits for them to emit their final events
// and closes the cache.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancelRuns
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping solver service...")

	cancel()
	s.runs.Wait()

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn(ctx, "closing cache", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "solver service stopped")
}

// Cache returns the answer cache.
func (s *Service) Cache() repository.Cache { return s.cache }

// PollInterval returns the idle wait relays should use on run queues.
func (s *Service) PollInterval() time.Duration { return s.pollInterval }

// MaxAttempts returns the configured safety bound.
func (s *Service) MaxAttempts() int { return s.maxAttempts }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.StatsResponse {
	s.mu.RLock()
	started, startedAt := s.started, s.startedAt
	s.mu.RUnlock()

	stats := types.StatsResponse{
		ActiveRuns:     int(s.tracker.Active()),
		RunsStarted:    s.runsStarted.Load(),
		AttemptsTotal:  s.attemptsTotal.Load(),
		AttemptsFailed: s.attemptsFailed.Load(),
		LastKnowledge:  math.Float64frombits(s.lastKnowledge.Load()),
	}
	if started {
		stats.UptimeSeconds = time.Since(startedAt).Seconds()
	}
	if s.cache != nil {
		if n, err := s.cache.Count(ctx); err == nil {
			stats.CacheItems = n
		}
		if ok, err := s.cache.IsPopulated(ctx); err == nil {
			stats.CachePopulated = ok
		}
	}

	metrics.UpdateRunsActive(stats.ActiveRuns)
	return stats
}

func (s *Service) recordKnowledge(v float64) {
	s.lastKnowledge.Store(math.Float64bits(v))
	metrics.UpdateLastKnowledge(v)
}
