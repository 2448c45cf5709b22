// Package universe resolves the index members valid for a date range from the
// current membership list and the historical change log.
package universe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/pkg/logger"
)

// ReplayOrder selects how change-log entries are applied.
type ReplayOrder int

const (
	// ReplayChronological applies changes sorted by date; same-day entries keep source order.
	ReplayChronological ReplayOrder = iota
	// ReplaySource applies changes exactly as the source lists them.
	ReplaySource
)

// Source provides membership data.
type Source interface {
	Constituents(ctx context.Context) ([]model.Constituent, error)
	ConstituentChanges(ctx context.Context) ([]model.ConstituentChange, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReplayOrder sets the change-log replay order.
func WithReplayOrder(order ReplayOrder) Option {
	return func(r *Resolver) { r.order = order }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver computes the ticker set for a period.
type Resolver struct {
	source Source
	order  ReplayOrder
	logger logger.Logger
}

// NewResolver creates a Resolver reading from source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source, order: ReplayChronological}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("universe")
	}
	return r
}

type change struct {
	date    time.Time
	added   string
	removed string
}

// Resolve returns the sorted ticker set for [start, end]: current members
// added on or before end, with in-window changes replayed on top.
func (r *Resolver) Resolve(ctx context.Context, start, end time.Time) ([]string, error) {
	current, err := r.source.Constituents(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}

	members := make(map[string]struct{}, len(current))
	for _, c := range current {
		if c.Symbol == "" || c.DateFirstAdded == "" {
			r.logger.Warn(ctx, "skipping constituent without symbol or date added",
				logger.String("symbol", c.Symbol))
			continue
		}
		added, err := model.ParseDate(c.DateFirstAdded)
		if err != nil {
			r.logger.Warn(ctx, "skipping constituent with unreadable date added",
				logger.String("symbol", c.Symbol), logger.Error(err))
			continue
		}
		if !model.Day(added).After(model.Day(end)) {
			members[c.Symbol] = struct{}{}
		}
	}

	history, err := r.source.ConstituentChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch constituent changes: %w", err)
	}

	changes := make([]change, 0, len(history))
	for _, h := range history {
		if h.Date == "" {
			r.logger.Warn(ctx, "skipping constituent change without date",
				logger.String("added", h.Added), logger.String("removed", h.Removed))
			continue
		}
		d, err := model.ParseDate(h.Date)
		if err != nil {
			r.logger.Warn(ctx, "skipping constituent change with unreadable date",
				logger.String("date", h.Date), logger.Error(err))
			continue
		}
		if !model.Within(d, start, end) {
			continue
		}
		changes = append(changes, change{date: d, added: h.Added, removed: h.Removed})
	}
	if r.order == ReplayChronological {
		sort.SliceStable(changes, func(i, j int) bool { return changes[i].date.Before(changes[j].date) })
	}

	for _, c := range changes {
		if c.added != "" {
			members[c.added] = struct{}{}
		}
		if c.removed != "" {
			delete(members, c.removed)
		}
	}

	out := make([]string, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Exclude returns tickers without any symbol in blacklist, preserving order.
func Exclude(tickers, blacklist []string) []string {
	if len(blacklist) == 0 {
		return tickers
	}
	deny := make(map[string]struct{}, len(blacklist))
	for _, b := range blacklist {
		deny[b] = struct{}{}
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := deny[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
