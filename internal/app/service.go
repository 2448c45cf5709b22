// Package service runs the earnings pipeline end to end and exposes the
// results to the status API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/earnsignal/internal/adapters/export"
	"github.com/okian/earnsignal/internal/adapters/mq/worker"
	"github.com/okian/earnsignal/internal/adapters/repository"
	"github.com/okian/earnsignal/internal/app/pipeline"
	"github.com/okian/earnsignal/internal/config"
	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
	"github.com/okian/earnsignal/internal/domain/universe"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

// DataSource is everything the service reads from the data service.
type DataSource interface {
	universe.Source
	pipeline.DataSource
}

// Report summarizes one run.
type Report struct {
	RunID     string
	Window    config.Window
	Tickers   []string
	Failed    []string
	Events    int
	Snapshots int
	Outputs   []string
	Duration  time.Duration
}

// Service owns the pipeline components and the latest results.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	data    DataSource
	analyst pipeline.Analyst
	store   *repository.SnapshotStore
	closers []io.Closer
	now     func() time.Time
	logger  logger.Logger

	running bool
	pool    *worker.Pool
	runs    int
	last    *Report
	lastErr error
	lastAt  time.Time
}

// New constructs a Service from cfg. Components not injected through options
// are built from cfg: caches, the data-service client and the AI analyst.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewSnapshotStore()
	}
	if s.data != nil && s.analyst != nil {
		return s, nil
	}

	httpCache, aiCache, closers, err := caches(cfg, s.logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	s.closers = closers
	if s.data == nil {
		s.data = newDataSource(cfg, httpCache, s.logger)
	}
	if s.analyst == nil {
		a, err := newAnalyst(cfg, aiCache, s.logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("build analyst: %w", err)
		}
		s.analyst = a
	}
	return s, nil
}

// Close releases the caches.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Store returns the snapshot store holding the last run's results.
func (s *Service) Store() *repository.SnapshotStore { return s.store }

// Run executes one full pass: resolve the universe, enrich every ticker,
// rank the snapshots, publish them to the store and write the exports.
func (s *Service) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Report{}, ErrRunInProgress
	}
	s.running = true
	s.runs++
	s.mu.Unlock()

	start := s.now()
	report, err := s.run(ctx)
	report.Duration = s.now().Sub(start)
	metrics.RecordRun(err == nil && len(report.Failed) == 0, report.Duration)

	s.mu.Lock()
	s.running = false
	s.last, s.lastErr, s.lastAt = &report, err, s.now()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, "run failed", logger.String("run_id", report.RunID),
			logger.Duration("duration", report.Duration), logger.Error(err))
		return report, err
	}
	s.logger.Info(ctx, "run completed",
		logger.String("run_id", report.RunID),
		logger.Int("tickers", len(report.Tickers)),
		logger.Int("failed", len(report.Failed)),
		logger.Int("events", report.Events),
		logger.Int("snapshots", report.Snapshots),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func (s *Service) run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	window, err := s.cfg.Window(s.now())
	if err != nil {
		return report, err
	}
	report.Window = window

	tickers, err := s.tickers(ctx, window)
	if err != nil {
		return report, err
	}
	report.Tickers = tickers
	s.logger.Info(ctx, "starting run",
		logger.String("run_id", report.RunID),
		logger.String("start", model.FormatDate(window.Start)),
		logger.String("end", model.FormatDate(window.End)),
		logger.Int("tickers", len(tickers)),
		logger.String("policy", s.cfg.FailurePolicy))

	pipe := pipeline.New(s.data, s.analyst, window.Start, window.End,
		pipeline.WithBenchmark(s.cfg.BenchmarkSymbol),
		pipeline.WithHistoryQuarters(s.cfg.EPSHistoryQuarters),
		pipeline.WithLogger(s.logger.Named("pipeline")),
	)
	pool := worker.NewPool(pipe,
		worker.WithSize(s.cfg.MaxConcurrentTickers),
		worker.WithPolicy(policy(s.cfg.FailurePolicy)),
		worker.WithLogger(s.logger.Named("worker-pool")),
	)
	s.mu.Lock()
	s.pool = pool
	s.mu.Unlock()

	outcomes, err := pool.Run(ctx, tickers)
	if err != nil {
		return report, err
	}

	var events []model.EarningsEvent
	for _, o := range outcomes {
		if o.Err != nil {
			report.Failed = append(report.Failed, o.Ticker)
			continue
		}
		events = append(events, o.Events...)
	}
	if len(report.Failed) > 0 {
		s.logger.Warn(ctx, "tickers failed", logger.Strings("tickers", report.Failed))
	}

	snapshots := ranking.Build(events)
	s.store.Replace(snapshots)
	report.Events = len(events)
	report.Snapshots = len(snapshots)

	outputs, err := s.export(ctx, snapshots)
	report.Outputs = outputs
	return report, err
}

// tickers resolves the universe, or takes the configured list, minus the
// blacklist.
func (s *Service) tickers(ctx context.Context, w config.Window) ([]string, error) {
	tickers := s.cfg.Tickers
	if len(tickers) == 0 {
		order := universe.ReplayChronological
		if s.cfg.ReplayOrder == config.ReplaySource {
			order = universe.ReplaySource
		}
		resolver := universe.NewResolver(s.data,
			universe.WithReplayOrder(order),
			universe.WithLogger(s.logger.Named("universe")))
		resolved, err := resolver.Resolve(ctx, w.Start, w.End)
		if err != nil {
			return nil, fmt.Errorf("resolve universe: %w", err)
		}
		tickers = resolved
	}
	tickers = universe.Exclude(tickers, s.cfg.Blacklist)
	if len(tickers) == 0 {
		return nil, ErrEmptyUniverse
	}
	return tickers, nil
}

func (s *Service) export(ctx context.Context, snapshots []ranking.Snapshot) ([]string, error) {
	var outputs []string
	path := filepath.Join(s.cfg.OutDir, export.SnapshotFile)
	if err := export.WriteSnapshots(path, snapshots); err != nil {
		return outputs, fmt.Errorf("export snapshots: %w", err)
	}
	outputs = append(outputs, path)
	s.logger.Info(ctx, "snapshot file written", logger.String("path", path))

	if len(snapshots) == 0 {
		s.logger.Warn(ctx, "no snapshots; skipping workbook")
		return outputs, nil
	}
	if s.cfg.OnlyLatest {
		path = filepath.Join(s.cfg.OutDir, export.LatestWorkbookFile)
		if err := export.WriteLatestWorkbook(path, snapshots); err != nil {
			return outputs, fmt.Errorf("export latest workbook: %w", err)
		}
	} else {
		path = filepath.Join(s.cfg.OutDir, export.HistoryWorkbookFile)
		if err := export.WriteHistoryWorkbook(path, snapshots); err != nil {
			return outputs, fmt.Errorf("export history workbook: %w", err)
		}
	}
	s.logger.Info(ctx, "workbook written", logger.String("path", path))
	return append(outputs, path), nil
}

func policy(name string) worker.Policy {
	if name == config.Continue {
		return worker.Continue
	}
	return worker.FailFast
}

// TopN returns the top n rows of the latest snapshot.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns ticker's row in the latest snapshot.
func (s *Service) Rank(ctx context.Context, ticker string) (repository.Entry, error) {
	return s.store.Rank(ctx, ticker)
}

// GetStats returns run statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"running":         s.running,
		"runs":            s.runs,
		"failurePolicy":   s.cfg.FailurePolicy,
		"workerCount":     s.cfg.MaxConcurrentTickers,
		"snapshots":       len(s.store.Dates()),
		"leaderboardSize": s.store.Count(context.Background()),
	}
	if s.pool != nil {
		p := s.pool.Progress()
		stats["tickersTotal"] = p.Total
		stats["tickersCompleted"] = p.Completed
		stats["tickersFailed"] = p.Failed
		stats["workersActive"] = p.Active
	}
	if s.last != nil {
		stats["lastRunId"] = s.last.RunID
		stats["lastRunAt"] = s.lastAt.UTC().Format(time.RFC3339)
		stats["lastRunDuration"] = s.last.Duration.String()
		stats["lastRunEvents"] = s.last.Events
		stats["lastRunFailed"] = s.last.Failed
	}
	if s.lastErr != nil {
		stats["lastError"] = s.lastErr.Error()
	}
	return stats
}
