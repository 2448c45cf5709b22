package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/earnsignal/internal/app"
	"github.com/okian/earnsignal/internal/config"
	"github.com/okian/earnsignal/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestStatusServer(t *testing.T) {
	convey.Convey("Given a service built from configuration", t, func() {
		cfg := config.New(context.Background())
		cfg.AIProvider = config.ProviderOpenAI
		cfg.AIKey = "test"
		cfg.DataAPIKey = "test"
		cfg.UseCache = false
		svc, err := service.New(cfg)
		convey.So(err, convey.ShouldBeNil)
		defer svc.Close()

		convey.Convey("When the status server is created", func() {
			srv := newStatusServer(":0", svc)

			convey.Convey("Then timeouts are set", func() {
				convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			})

			convey.Convey("Then the routes are served", func() {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				w = httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestRunConfigErrors(t *testing.T) {
	convey.Convey("Given configuration missing credentials", t, func() {
		_ = os.Setenv("EARNSIGNAL_DATA_API_KEY", "")
		_ = os.Setenv("EARNSIGNAL_AI_KEY", "")
		defer func() {
			_ = os.Unsetenv("EARNSIGNAL_DATA_API_KEY")
			_ = os.Unsetenv("EARNSIGNAL_AI_KEY")
		}()

		convey.Convey("Then run exits with the config code", func() {
			convey.So(run(), convey.ShouldEqual, exitConfig)
		})
	})
}

func TestExitCode(t *testing.T) {
	convey.Convey("Given run outcomes", t, func() {
		convey.Convey("When every ticker succeeded", func() {
			convey.So(exitCode(service.Report{Tickers: []string{"AAPL"}}, nil), convey.ShouldEqual, exitOK)
		})

		convey.Convey("When the run returned an error", func() {
			convey.So(exitCode(service.Report{}, service.ErrEmptyUniverse), convey.ShouldEqual, exitFailed)
		})

		convey.Convey("When tickers failed under the continue policy", func() {
			report := service.Report{Tickers: []string{"AAPL", "BAD"}, Failed: []string{"BAD"}}
			convey.So(exitCode(report, nil), convey.ShouldEqual, exitFailed)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the current process", t, func() {
		proc, err := process.NewProcess(int32(os.Getpid()))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then metrics update without panicking", func() {
			convey.So(func() { updateSystemMetrics(proc) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics(nil) }, convey.ShouldNotPanic)
		})
	})
}
