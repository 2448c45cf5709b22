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

	"github.com/shirou/gopsutil/v3/process"

	"github.com/okian/earnsignal/internal/adapters/http/api"
	"github.com/okian/earnsignal/internal/adapters/scheduler"
	service "github.com/okian/earnsignal/internal/app"
	"github.com/okian/earnsignal/internal/config"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return exitConfig
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return exitConfig
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return exitConfig
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logger.Error(err))
		return exitConfig
	}

	svc, err := service.New(cfg, service.WithLogger(log.Named("service")))
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return exitFailed
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error(ctx, "failed to close service", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	if cfg.StatusAddr != "" {
		srv := newStatusServer(cfg.StatusAddr, svc)
		go func() {
			log.Info(ctx, "starting status server", logger.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "status server failed", logger.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "status server shutdown failed", logger.Error(err))
			}
		}()
	}

	if cfg.Schedule == "" {
		report, err := svc.Run(ctx)
		code := exitCode(report, err)
		if code != exitOK && err == nil {
			log.Error(ctx, "run finished with failed tickers", logger.Strings("failed", report.Failed))
		}
		return code
	}
	return runScheduled(ctx, cfg.Schedule, svc, log)
}

// exitCode maps a run outcome to the process exit code. A run that completed
// under the continue policy still fails when any ticker failed.
func exitCode(report service.Report, err error) int {
	if err != nil || len(report.Failed) > 0 {
		return exitFailed
	}
	return exitOK
}

// runScheduled runs once immediately, then on every tick of spec until the
// process is signalled.
func runScheduled(ctx context.Context, spec string, svc *service.Service, log logger.Logger) int {
	sched := scheduler.New(ctx, scheduler.WithLogger(log.Named("scheduler")))
	job := func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		return err
	}
	if err := sched.Add(spec, "pipeline", job); err != nil {
		log.Error(ctx, "invalid schedule", logger.Error(err))
		return exitConfig
	}
	sched.Start()
	if err := job(ctx); err != nil && !errors.Is(err, service.ErrRunInProgress) {
		log.Warn(ctx, "initial run failed; waiting for the next tick", logger.Error(err))
	}
	log.Info(ctx, "waiting for next run", logger.Any("next", sched.Next()))

	<-ctx.Done()
	log.Info(ctx, "shutting down...")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Error(ctx, "scheduler stop failed", logger.Error(err))
		return exitFailed
	}
	return exitOK
}

func newStatusServer(addr string, svc *service.Service) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(svc, svc).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes process gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32
	if err != nil {
		logger.Get().Warn(ctx, "process metrics unavailable", logger.Error(err))
	}
	updateSystemMetrics(proc)

	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics(proc)
		}
	}
}

// updateSystemMetrics records resident memory and the goroutine count.
func updateSystemMetrics(proc *process.Process) {
	if proc != nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			metrics.UpdateSystemMemoryUsage(mem.RSS)
		}
	}
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
