package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	app "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/config"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		cfg := config.New(context.Background())
		cfg.WarmWorkers = 3
		cfg.WarmQueueSize = 64

		convey.Convey("When the service is built from it", func() {
			svc := app.New(serviceOptions(cfg, logger.Nop())...)
			defer svc.Close()
			stats := svc.GetStats()

			convey.Convey("Then the options are applied", func() {
				convey.So(stats["warmWorkers"], convey.ShouldEqual, 3)
				convey.So(stats["warmQueueSize"], convey.ShouldEqual, 64)
			})
		})
	})
}

func TestHandler(t *testing.T) {
	convey.Convey("Given the full route table", t, func() {
		ctx := context.Background()
		svc := app.New(app.WithLogger(logger.Nop()))
		defer svc.Close()
		h := newHandler(ctx, svc)

		serve := func(method, path, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Then docs and API routes are both mounted", func() {
			convey.So(serve(http.MethodGet, "/healthz", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)

			w := serve(http.MethodPost, "/users/u1/liked/judgments", `{"item_a":1,"item_b":2,"winner":2}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			w = serve(http.MethodGet, "/users/u1/liked/rankings", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"item_id":2,"rank":"1"`)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a config bound to an ephemeral port", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		cfg.WarmWorkers = 1
		cfg.ShutdownTimeout = 2 * time.Second

		ctx, cancel := context.WithCancel(context.Background())
		ready := make(chan string, 1)
		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg, ready) }()

		convey.Convey("When the server is up it answers and stops on cancel", func() {
			addr := <-ready
			resp, err := http.Post("http://"+addr+"/users/u1/liked/judgments", "application/json",
				bytes.NewBufferString(`{"item_a":1,"item_b":2,"winner":1}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)

			cancel()
			convey.So(<-done, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given an address that cannot be bound", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "256.0.0.1:0"

		convey.Convey("Then run reports the error", func() {
			convey.So(run(context.Background(), cfg, nil), convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		updateSystemMetrics()

		convey.Convey("Then the goroutine gauge is exported", func() {
			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(strings.Join(names, ","), convey.ShouldContainSubstring, "goroutine")
		})
	})
}
