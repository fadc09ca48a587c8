package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/plusolver/internal/adapters/easyplu/easyplutest"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/config"
	"github.com/okian/plusolver/internal/domain/types"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func jsonBody(v any) io.Reader {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bytes.NewReader(b)
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a config pointing at the fake vendor", t, func() {
		fake := easyplutest.NewServer(6)
		defer fake.Close()

		t.Setenv("PLUSOLVER_CONFIG", "")
		t.Setenv("PLUSOLVER_ADDR", ":18000")
		t.Setenv("PLUSOLVER_VENDOR_BASE_URL", fake.URL)
		t.Setenv("PLUSOLVER_CACHE_DRIVER", "memory")
		t.Setenv("PLUSOLVER_SETTLE_DELAY_MS", "0")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":18000")

		svc, client, err := newService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(client.BaseURL(), convey.ShouldEqual, fake.URL)
		defer svc.Stop()

		h := newHandler(ctx, cfg, svc, client)

		convey.Convey("Then the API, docs and console are all routed", func() {
			for _, path := range []string{"/health", "/stats", "/metrics", "/catalog", "/openapi.yaml", "/api-docs", "/"} {
				req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then a run goes through to the vendor", func() {
			req := httptest.NewRequest(http.MethodPost, "/run-session",
				jsonBody(types.SessionRequest{Email: easyplutest.Email, Password: easyplutest.Password}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var resp types.SessionResponse
			convey.So(json.Unmarshal(w.Body.Bytes(), &resp), convey.ShouldBeNil)
			convey.So(resp.Data.TotalItems, convey.ShouldEqual, 6)
			convey.So(fake.Results(), convey.ShouldEqual, 1)
		})

		convey.Convey("Then shutting the server down stops the service", func() {
			srv := newHTTPServer("127.0.0.1:0", h, svc)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, time.Duration(0))
			convey.So(srv.Shutdown(ctx), convey.ShouldBeNil)

			for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
				if svc.GetStats(ctx).UptimeSeconds == 0 {
					break
				}
			}
			convey.So(svc.GetStats(ctx).UptimeSeconds, convey.ShouldEqual, 0.0)

			_, err := svc.Stream(ctx, nil, service.RunOptions{})
			convey.So(errors.Is(err, service.ErrNotStarted), convey.ShouldBeTrue)
		})

		convey.Convey("Then the service metrics updater reads the cache", func() {
			convey.So(func() { updateServiceMetrics(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an unknown cache driver", t, func() {
		t.Setenv("PLUSOLVER_CONFIG", "")
		t.Setenv("PLUSOLVER_CACHE_DRIVER", "mongo")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given an empty addr", t, func() {
		t.Setenv("PLUSOLVER_CONFIG", "")
		t.Setenv("PLUSOLVER_ADDR", " ")

		convey.Convey("Then configuration loading should fail", func() {
			_, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When running the system metrics updater until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When updating system metrics directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When creating a metrics manager on a private registry", func() {
			start := time.Now()
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
			convey.So(time.Since(start), convey.ShouldBeLessThan, 100*time.Millisecond)
		})
	})
}
