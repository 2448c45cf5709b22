// Package pipeline enriches one ticker's earnings events: discovery,
// surprises, transcripts, prices, AI scores and deltas, in that order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

// DataSource provides the market data a ticker needs. *fmp.Client satisfies it.
type DataSource interface {
	TranscriptRefs(ctx context.Context, ticker string) ([]model.TranscriptRef, error)
	Surprises(ctx context.Context, ticker string) ([]model.Surprise, error)
	Transcript(ctx context.Context, ticker string, year, quarter int) (string, error)
	Prices(ctx context.Context, symbol string, from, to time.Time) ([]model.PricePoint, bool, error)
}

// Analyst produces the AI outputs for an event. *ai.Analyst satisfies it.
type Analyst interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	DetailedScores(ctx context.Context, summary string) (string, error)
	NaiveScore(ctx context.Context, summary string) (string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBenchmark sets the index paired with every price observation.
func WithBenchmark(symbol string) Option {
	return func(p *Pipeline) {
		if symbol != "" {
			p.benchmark = symbol
		}
	}
}

// WithHistoryQuarters sets how many earlier actual EPS values feed SUE.
func WithHistoryQuarters(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.quarters = n
		}
	}
}

// WithClock sets the time source stamped on scored events.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline runs the enrichment stages for tickers over one date window.
// It holds no per-ticker state and is safe for concurrent use.
type Pipeline struct {
	data      DataSource
	analyst   Analyst
	start     time.Time
	end       time.Time
	benchmark string
	quarters  int
	now       func() time.Time
	logger    logger.Logger
}

// New returns a Pipeline for events dated within [start, end].
func New(data DataSource, analyst Analyst, start, end time.Time, opts ...Option) *Pipeline {
	p := &Pipeline{
		data:      data,
		analyst:   analyst,
		start:     start,
		end:       end,
		benchmark: "^GSPC",
		quarters:  8,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	return p
}

// Process returns the ticker's scored events in ascending date order.
// Data-quality problems drop events; errors from the services abort.
func (p *Pipeline) Process(ctx context.Context, ticker string) ([]model.EarningsEvent, error) {
	refs, err := p.data.TranscriptRefs(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: transcript metadata: %w", ticker, err)
	}
	set, invalid := Discover(ticker, refs, p.start, p.end)
	for _, ref := range invalid {
		p.logger.Warn(ctx, "skipping transcript metadata with unreadable timestamp",
			logger.String("ticker", ticker), logger.String("timestamp", ref.Timestamp))
	}
	p.logger.Debug(ctx, "events discovered", logger.String("ticker", ticker), logger.Int("events", set.Len()))
	if set.Len() == 0 {
		return nil, nil
	}

	history, err := p.data.Surprises(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: surprises: %w", ticker, err)
	}
	p.dropped(ctx, ticker, AttachSurprises(set, history, p.quarters))

	for _, e := range set.Events() {
		text, err := p.data.Transcript(ctx, ticker, e.Year, e.Quarter)
		if err != nil {
			return nil, fmt.Errorf("%s: transcript %d Q%d: %w", ticker, e.Year, e.Quarter, err)
		}
		if !AttachTranscript(&e, text) {
			set.Remove(e.Key())
			p.dropped(ctx, ticker, []Drop{{Date: e.Key(), Reason: model.DropEmptyTranscript,
				Detail: fmt.Sprintf("no transcript for %d Q%d", e.Year, e.Quarter)}})
			continue
		}
		set.Put(e)
	}

	for _, e := range set.Events() {
		if err := p.attachPrices(ctx, &e); err != nil {
			return nil, err
		}
		set.Put(e)
	}

	events := set.Sorted()
	for i := range events {
		if err := p.score(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	ComputeDeltas(events)
	return events, nil
}

func (p *Pipeline) attachPrices(ctx context.Context, e *model.EarningsEvent) error {
	from, to := PriceRange(e.Date)
	own, found, err := p.data.Prices(ctx, e.Ticker, from, to)
	if err != nil {
		return fmt.Errorf("%s: prices for %s: %w", e.Ticker, e.Key(), err)
	}
	if !found {
		p.logger.Warn(ctx, "no historical prices",
			logger.String("ticker", e.Ticker), logger.String("date", e.Key()))
		e.Stage = model.StagePricesAttached
		return nil
	}
	bench, found, err := p.data.Prices(ctx, p.benchmark, from, to)
	if err != nil {
		return fmt.Errorf("%s: benchmark prices for %s: %w", e.Ticker, e.Key(), err)
	}
	if !found {
		p.logger.Warn(ctx, "no benchmark prices",
			logger.String("ticker", e.Ticker), logger.String("date", e.Key()), logger.String("benchmark", p.benchmark))
	}
	AttachPrices(e, own, bench)
	return nil
}

func (p *Pipeline) score(ctx context.Context, e *model.EarningsEvent) error {
	start := time.Now()
	summary, err := p.analyst.Summarize(ctx, e.Transcript)
	if err != nil {
		return fmt.Errorf("%s: summary for %s: %w", e.Ticker, e.Key(), err)
	}
	detailed, err := p.analyst.DetailedScores(ctx, summary)
	if err != nil {
		return fmt.Errorf("%s: scores for %s: %w", e.Ticker, e.Key(), err)
	}
	naive, err := p.analyst.NaiveScore(ctx, summary)
	if err != nil {
		return fmt.Errorf("%s: naive score for %s: %w", e.Ticker, e.Key(), err)
	}
	if err := ApplyScores(e, summary, detailed, naive, p.now()); err != nil {
		return fmt.Errorf("%s: %s: %w", e.Ticker, e.Key(), err)
	}
	metrics.RecordEventScored()
	p.logger.Debug(ctx, "event scored",
		logger.String("ticker", e.Ticker), logger.String("date", e.Key()),
		logger.Float64("ais", *e.AIS), logger.Duration("took", time.Since(start)))
	return nil
}

func (p *Pipeline) dropped(ctx context.Context, ticker string, drops []Drop) {
	for _, d := range drops {
		metrics.RecordEventDropped(string(d.Reason))
		p.logger.Warn(ctx, "dropping event",
			logger.String("ticker", ticker), logger.String("date", d.Date),
			logger.String("reason", string(d.Reason)), logger.String("detail", d.Detail))
	}
}
