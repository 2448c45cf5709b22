// Package ranking assembles per-date cohort snapshots from scored events and
// ranks every snapshot cross-sectionally.
package ranking

import (
	"sort"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/scoring"
)

// Snapshot is the as-of cohort for one date: each ticker's most recent event
// dated on or before Date, ordered by ticker.
type Snapshot struct {
	Date   time.Time
	Events []model.EarningsEvent
}

// Tickers lists the snapshot's tickers in order.
func (s *Snapshot) Tickers() []string {
	out := make([]string, len(s.Events))
	for i := range s.Events {
		out[i] = s.Events[i].Ticker
	}
	return out
}

// Find returns the snapshot entry for ticker.
func (s *Snapshot) Find(ticker string) (*model.EarningsEvent, bool) {
	i := sort.Search(len(s.Events), func(i int) bool { return s.Events[i].Ticker >= ticker })
	if i < len(s.Events) && s.Events[i].Ticker == ticker {
		return &s.Events[i], true
	}
	return nil, false
}

// Assemble builds one snapshot per distinct event date, ascending. Every
// snapshot holds its own copies of the events so ranks written into one
// snapshot never show up in another. Input order does not matter.
func Assemble(events []model.EarningsEvent) []Snapshot {
	sorted := make([]model.EarningsEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Ticker < sorted[j].Ticker
	})

	latest := make(map[string]model.EarningsEvent)
	var snapshots []Snapshot
	for i := 0; i < len(sorted); {
		date := sorted[i].Date
		for ; i < len(sorted) && sorted[i].Date.Equal(date); i++ {
			latest[sorted[i].Ticker] = sorted[i]
		}
		snapshots = append(snapshots, Snapshot{Date: date, Events: cohort(latest)})
	}
	return snapshots
}

func cohort(latest map[string]model.EarningsEvent) []model.EarningsEvent {
	out := make([]model.EarningsEvent, 0, len(latest))
	for _, e := range latest {
		e.HistoricalEPS = append([]float64(nil), e.HistoricalEPS...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Rank writes percentile ranks and the combined score into every event of s,
// using only s's own members as the reference population.
func Rank(s *Snapshot) {
	var ais, naive, delta, sue []float64
	for i := range s.Events {
		e := &s.Events[i]
		ais = appendPresent(ais, e.AIS)
		naive = appendPresent(naive, e.NaiveAIS)
		delta = appendPresent(delta, e.AISDelta)
		sue = appendPresent(sue, e.SUE)
	}
	for i := range s.Events {
		e := &s.Events[i]
		r := model.Ranks{
			AIS:      scoring.PercentileOf(ais, e.AIS),
			NaiveAIS: scoring.PercentileOf(naive, e.NaiveAIS),
			AISDelta: scoring.PercentileOf(delta, e.AISDelta),
			SUE:      scoring.PercentileOf(sue, e.SUE),
		}
		r.Score = scoring.Combined(r.AIS, r.AISDelta, r.SUE)
		e.Ranks = r
	}
}

// Build assembles and ranks in one step.
func Build(events []model.EarningsEvent) []Snapshot {
	snapshots := Assemble(events)
	for i := range snapshots {
		Rank(&snapshots[i])
	}
	return snapshots
}

func appendPresent(dst []float64, v *float64) []float64 {
	if v == nil {
		return dst
	}
	return append(dst, *v)
}
