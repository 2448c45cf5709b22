// Package worker runs the per-ticker pipeline over a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/earnsignal/internal/adapters/mq/queue"
	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

const defaultPoolSize = 3

// Policy decides what a ticker failure does to the run.
type Policy int

const (
	// FailFast cancels the run on the first ticker failure.
	FailFast Policy = iota
	// Continue records the failure and keeps processing other tickers.
	Continue
)

func (p Policy) String() string {
	if p == Continue {
		return "continue"
	}
	return "fail_fast"
}

// Processor enriches one ticker. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, ticker string) ([]model.EarningsEvent, error)
}

// Outcome is the result for one ticker: its events, or the error that
// stopped it.
type Outcome struct {
	Ticker   string
	Seq      int
	Events   []model.EarningsEvent
	Err      error
	Duration time.Duration
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Active    int
}

// Pool processes tickers with a fixed number of workers. A Pool runs one
// batch at a time.
type Pool struct {
	processor Processor
	size      int
	policy    Policy
	logger    logger.Logger

	running   atomic.Bool
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int64
}

// NewPool creates a pool around processor.
func NewPool(processor Processor, opts ...Option) *Pool {
	p := &Pool{processor: processor, size: defaultPoolSize, policy: FailFast}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	return p
}

// Progress reports counters of the current or last run.
func (p *Pool) Progress() Progress {
	return Progress{
		Total:     int(p.total.Load()),
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
		Active:    int(p.active.Load()),
	}
}

// Run processes tickers and returns one outcome per finished ticker, in
// input order. Under FailFast the first failure cancels the remaining work
// and is returned as a *TickerError. Under Continue failures are reported
// in the outcomes and the error is nil unless ctx ends early.
func (p *Pool) Run(ctx context.Context, tickers []string) ([]Outcome, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, errors.New("worker pool already running")
	}
	defer p.running.Store(false)

	p.total.Store(int64(len(tickers)))
	p.completed.Store(0)
	p.failed.Store(0)
	metrics.UpdateTickersTotal(len(tickers))

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(tickers)))
	for i, t := range tickers {
		q.Enqueue(ctx, queue.Job{Ticker: t, Seq: i})
	}
	_ = q.Close()

	g, gctx := errgroup.WithContext(ctx)
	jobs := q.Dequeue(gctx)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(tickers))

	for i := 0; i < p.size; i++ {
		name := "worker-" + strconv.Itoa(i)
		g.Go(func() error {
			for job := range jobs {
				o := p.process(gctx, name, job)
				if o.Err != nil && p.policy == FailFast {
					return &TickerError{Ticker: o.Ticker, Err: o.Err}
				}
				mu.Lock()
				outcomes = append(outcomes, o)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Seq < outcomes[j].Seq })

	if err != nil {
		return outcomes, err
	}
	if ctx.Err() != nil {
		return outcomes, fmt.Errorf("%w: %w", ErrPoolStopped, ctx.Err())
	}
	return outcomes, nil
}

func (p *Pool) process(ctx context.Context, name string, job queue.Job) Outcome {
	p.active.Add(1)
	metrics.AddWorkerActive(1)
	defer func() {
		p.active.Add(-1)
		metrics.AddWorkerActive(-1)
	}()

	start := time.Now()
	events, err := p.processor.Process(ctx, job.Ticker)
	o := Outcome{Ticker: job.Ticker, Seq: job.Seq, Events: events, Err: err, Duration: time.Since(start)}
	total := p.total.Load()

	if err != nil {
		failed := p.failed.Add(1)
		metrics.RecordTickerFailed()
		if ctx.Err() == nil {
			p.logger.Error(ctx, "ticker failed",
				logger.String("worker", name), logger.String("ticker", job.Ticker),
				logger.Int64("failed", failed), logger.Int64("total", total), logger.Error(err))
		}
		return o
	}

	completed := p.completed.Add(1)
	metrics.RecordTickerCompleted(o.Duration)
	p.logger.Info(ctx, fmt.Sprintf("processed %s (%d/%d)", job.Ticker, completed, total),
		logger.String("worker", name), logger.String("ticker", job.Ticker),
		logger.Int("events", len(events)), logger.Int64("completed", completed),
		logger.Int64("total", total), logger.Duration("duration", o.Duration))
	return o
}
