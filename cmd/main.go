package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/adapters/http/api"
	"github.com/okian/plusolver/internal/adapters/http/site"
	"github.com/okian/plusolver/internal/adapters/http/swagger"
	"github.com/okian/plusolver/internal/adapters/repository"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/config"
	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/internal/domain/targeting"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout stays zero: event streams
// last as long as a full-knowledge run.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Configure(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "relay failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, client, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg.Addr, newHandler(ctx, cfg, svc, client), svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHTTPServer builds the relay server. Shutdown stops the service first so
// open event streams end with error and closed instead of holding the
// shutdown until its timeout.
func newHTTPServer(addr string, h http.Handler, svc *service.Service) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(svc.Stop)
	return srv
}

// newService opens the answer cache and starts the solver service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, *easyplu.Client, error) {
	cache, err := repository.OpenCache(ctx, cfg.CacheDriver, cfg.CacheDSN)
	if err != nil {
		return nil, nil, err
	}

	client := easyplu.New(
		easyplu.WithBaseURL(cfg.VendorBaseURL),
		easyplu.WithTimeout(cfg.VendorTimeout()),
		easyplu.WithSettleDelay(cfg.SettleDelay()),
		easyplu.WithCatalogSize(cfg.CatalogSize),
		easyplu.WithLocale(cfg.Locale),
		easyplu.WithLanguageID(cfg.LanguageID),
	)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithCache(cache),
		service.WithPlanner(targeting.NewPlanner(targeting.WithWrongAnswer(cfg.WrongAnswer))),
		service.WithMaxAttempts(cfg.MaxAttempts),
		service.WithPollInterval(cfg.PollInterval()),
		service.WithQueueCapacity(cfg.QueueCapacity),
		service.WithMaxActiveRuns(cfg.MaxActiveRuns),
	)
	if err := svc.Start(ctx); err != nil {
		_ = cache.Close()
		return nil, nil, err
	}
	return svc, client, nil
}

// newHandler builds the router with the API, its reference docs and the
// operator console.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service, client *easyplu.Client) http.Handler {
	r := api.NewRouter(cfg.CORSOrigins)

	swagger.Register(ctx, r)

	apiServer := api.NewServer(svc, svc,
		func(creds model.Credentials) service.Authenticator {
			return service.PasswordAuth(client, creds)
		},
		api.WithMaxCatalogLimit(cfg.MaxCatalogLimit),
		api.WithAPIKeyHash(cfg.APIKeyHash),
	)
	apiServer.Register(ctx, r)

	site.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that only change between requests.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	// GetStats already refreshes the active runs gauge.
	stats := svc.GetStats(ctx)
	metrics.UpdateCacheItems(stats.CacheItems)
}
