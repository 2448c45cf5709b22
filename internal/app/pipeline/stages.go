package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/scoring"
)

// Price window around an event date.
const (
	pricesBefore = 7
	pricesAfter  = 37
)

// Drop records an event removed by a data-quality rule.
type Drop struct {
	Date   string
	Reason model.DropReason
	Detail string
}

// Discover builds the ticker's event set from transcript metadata, keeping
// calls dated within [start, end]. A later entry for an already seen date
// replaces the earlier one. Entries with unreadable timestamps are returned
// separately.
func Discover(ticker string, refs []model.TranscriptRef, start, end time.Time) (*model.EventSet, []model.TranscriptRef) {
	set := model.NewEventSet()
	var invalid []model.TranscriptRef
	for _, ref := range refs {
		date, err := model.ParseDate(ref.Timestamp)
		if err != nil {
			invalid = append(invalid, ref)
			continue
		}
		if !model.Within(date, start, end) {
			continue
		}
		set.Put(model.EarningsEvent{
			Ticker:    ticker,
			Timestamp: ref.Timestamp,
			Date:      date,
			Year:      ref.Year,
			Quarter:   ref.Quarter,
			Stage:     model.StageDiscovered,
		})
	}
	return set, invalid
}

// AttachSurprises matches every event to the surprise record nearest in
// time and copies its EPS figures plus up to n earlier actual EPS values.
// Events whose matched figures are not numeric are removed from set and
// reported. With no surprise history at all, events keep nil EPS.
func AttachSurprises(set *model.EventSet, history []model.Surprise, n int) []Drop {
	if len(history) == 0 {
		for _, e := range set.Events() {
			e.Stage = model.StageSurpriseAttached
			set.Put(e)
		}
		return nil
	}

	// Positions into history, most recent first; equal dates keep source order.
	byDate := make([]int, len(history))
	for i := range byDate {
		byDate[i] = i
	}
	sort.SliceStable(byDate, func(a, b int) bool {
		return history[byDate[a]].Date.After(history[byDate[b]].Date)
	})

	var drops []Drop
	for _, e := range set.Events() {
		match := nearest(history, e.Date)
		s := history[match]
		if s.Actual == nil || s.Estimated == nil {
			drops = append(drops, Drop{Date: e.Key(), Reason: model.DropMalformedSurprise, Detail: "matched EPS not numeric"})
			set.Remove(e.Key())
			continue
		}
		past, ok := priorActuals(history, byDate, match, n)
		if !ok {
			drops = append(drops, Drop{Date: e.Key(), Reason: model.DropMalformedSurprise, Detail: "historical EPS not numeric"})
			set.Remove(e.Key())
			continue
		}
		e.ActualEPS = model.Float(*s.Actual)
		e.EstimatedEPS = model.Float(*s.Estimated)
		e.HistoricalEPS = past
		e.Stage = model.StageSurpriseAttached
		set.Put(e)
	}
	return drops
}

// nearest returns the index of the record closest to date; the first of
// equally close records wins.
func nearest(history []model.Surprise, date time.Time) int {
	best, bestDiff := 0, -1
	for i, s := range history {
		d := model.DaysBetween(s.Date, date)
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func priorActuals(history []model.Surprise, byDate []int, match, n int) ([]float64, bool) {
	pos := 0
	for i, idx := range byDate {
		if idx == match {
			pos = i
			break
		}
	}
	out := make([]float64, 0, n)
	for _, idx := range byDate[pos+1:] {
		if len(out) == n {
			break
		}
		v := history[idx].Actual
		if v == nil {
			return nil, false
		}
		out = append(out, *v)
	}
	return out, true
}

// AttachTranscript stores text on e. It reports false when the transcript
// is empty and the event must be dropped.
func AttachTranscript(e *model.EarningsEvent, text string) bool {
	if text == "" {
		return false
	}
	e.Transcript = text
	e.Stage = model.StageTranscriptAttached
	return true
}

// PriceRange returns the closes window fetched for an event.
func PriceRange(date time.Time) (from, to time.Time) {
	return date.AddDate(0, 0, -pricesBefore), date.AddDate(0, 0, pricesAfter)
}

// AttachPrices resolves the five labeled observations from the ticker's
// closes and pairs each with the benchmark close on the same date. The
// day2, day7 and day30 searches are independent: one close may satisfy
// several labels.
func AttachPrices(e *model.EarningsEvent, own, benchmark []model.PricePoint) {
	points := make([]model.PricePoint, len(own))
	copy(points, own)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	event := model.Day(e.Date)
	plus1, plus7, plus30 := event.AddDate(0, 0, 1), event.AddDate(0, 0, 7), event.AddDate(0, 0, 30)

	var trail model.PriceTrail
	for _, p := range points {
		d := model.Day(p.Date)
		switch {
		case d.Before(event):
			trail.Day0 = observation(d, p.Close)
		case d.Equal(event):
			trail.Day1 = observation(d, p.Close)
		}
		if !trail.Day2.Resolved() && !d.Before(plus1) {
			trail.Day2 = observation(d, p.Close)
		}
		if !trail.Day7.Resolved() && !d.Before(plus7) {
			trail.Day7 = observation(d, p.Close)
		}
		if !trail.Day30.Resolved() && !d.Before(plus30) {
			trail.Day30 = observation(d, p.Close)
		}
	}

	bench := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		bench[model.Day(p.Date)] = p.Close
	}
	for _, o := range []*model.Observation{&trail.Day0, &trail.Day1, &trail.Day2, &trail.Day7, &trail.Day30} {
		if !o.Resolved() {
			continue
		}
		if v, ok := bench[*o.Date]; ok {
			o.BenchmarkClose = model.Float(v)
		}
	}

	e.Prices = trail
	e.Stage = model.StagePricesAttached
}

func observation(d time.Time, price float64) model.Observation {
	return model.Observation{Date: &d, Close: model.Float(price)}
}

// ApplyScores records the AI outputs on e: the summary, the composite score
// of the structured response, the naive score and SUE.
func ApplyScores(e *model.EarningsEvent, summary, detailed, naive string, now time.Time) error {
	if !json.Valid([]byte(detailed)) || !json.Valid([]byte(naive)) {
		return fmt.Errorf("%w: response is not valid JSON", scoring.ErrMalformedScores)
	}
	tree, err := scoring.ParseScoreTree([]byte(detailed))
	if err != nil {
		return err
	}
	naiveScore, err := scoring.NaiveScore([]byte(naive))
	if err != nil {
		return err
	}
	e.Summary = summary
	e.AIS = model.Float(tree.Composite())
	e.AISDetail = json.RawMessage(detailed)
	e.NaiveAIS = model.Float(naiveScore)
	e.NaiveAISDetail = json.RawMessage(naive)
	e.SUE = scoring.SUE(e.ActualEPS, e.EstimatedEPS, e.HistoricalEPS)
	e.Stage = model.StageAIScored
	e.ScoredAt = now
	return nil
}

// ComputeDeltas sorts events by date and sets each AIS delta against the
// previous event of the same ticker. The first event's delta is its AIS.
func ComputeDeltas(events []model.EarningsEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	var prev *float64
	for i := range events {
		var cur float64
		if events[i].AIS != nil {
			cur = *events[i].AIS
		}
		events[i].AISDelta = model.Float(scoring.Delta(cur, prev))
		events[i].Stage = model.StageDeltaComputed
		prev = events[i].AIS
	}
}
