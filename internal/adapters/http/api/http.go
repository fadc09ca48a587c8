// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/plusolver/internal/adapters/repository"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	// Solve runs synchronously and returns the last attempt's result.
	Solve(ctx context.Context, auth service.Authenticator, opts service.RunOptions, emit service.Emitter) (model.AttemptResult, error)

	// Stream starts a detached run and returns its event queue.
	Stream(ctx context.Context, auth service.Authenticator, opts service.RunOptions) (*service.Run, error)

	// Cache exposes the answer cache for read endpoints.
	Cache() repository.Cache

	// PollInterval is the idle wait used when draining a run's queue.
	PollInterval() time.Duration
}

// AuthFactory turns request credentials into an Authenticator.
type AuthFactory func(creds model.Credentials) service.Authenticator

const defaultMaxCatalogLimit = 200

// Server wires HTTP routes for the relay API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	catalogHandler *CatalogHandler

	apiKeyHash      string
	maxCatalogLimit int
	logger          logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxCatalogLimit caps GET /catalog?limit.
func WithMaxCatalogLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxCatalogLimit = n
		}
	}
}

// WithAPIKeyHash guards the run and catalog routes with a bcrypt-hashed key.
func WithAPIKeyHash(hash string) Option {
	return func(s *Server) { s.apiKeyHash = hash }
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, auth AuthFactory, opts ...Option) *Server {
	s := &Server{maxCatalogLimit: defaultMaxCatalogLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.sessionHandler = NewSessionHandler(deps, auth, s.logger)
	s.catalogHandler = NewCatalogHandler(deps, s.maxCatalogLimit)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(ctx context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	r.Get("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Group(func(r chi.Router) {
		if s.apiKeyHash != "" {
			r.Use(APIKeyMiddleware(s.apiKeyHash))
		} else {
			s.logger.Warn(ctx, "no api key configured; run endpoints are open")
		}
		r.Post("/run-session", MetricsMiddleware(s.sessionHandler.HandleRunSession, "run_session"))
		r.Post("/run-session-stream", MetricsMiddleware(s.sessionHandler.HandleRunSessionStream, "run_session_stream"))
		r.Get("/catalog", MetricsMiddleware(s.catalogHandler.HandleList, "catalog"))
		r.Get("/catalog/{catalogID}", MetricsMiddleware(s.catalogHandler.HandleGet, "catalog_item"))
	})
}
