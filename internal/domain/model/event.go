// Package model contains the domain types passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// Stage is the enrichment state of an EarningsEvent. Stages only move forward.
type Stage int

const (
	StageDiscovered Stage = iota
	StageSurpriseAttached
	StageTranscriptAttached
	StagePricesAttached
	StageAIScored
	StageDeltaComputed
)

func (s Stage) String() string {
	switch s {
	case StageDiscovered:
		return "discovered"
	case StageSurpriseAttached:
		return "surprise_attached"
	case StageTranscriptAttached:
		return "transcript_attached"
	case StagePricesAttached:
		return "prices_attached"
	case StageAIScored:
		return "ai_scored"
	case StageDeltaComputed:
		return "delta_computed"
	default:
		return "unknown"
	}
}

// DropReason names the data-quality rule that removed an event.
type DropReason string

const (
	DropMalformedSurprise DropReason = "malformed_surprise"
	DropEmptyTranscript   DropReason = "empty_transcript"
)

// Observation is one labeled close price relative to an event, paired with
// the benchmark close on the same date.
type Observation struct {
	Date           *time.Time
	Close          *float64
	BenchmarkClose *float64
}

// Resolved reports whether a trading date was found for the label.
func (o Observation) Resolved() bool { return o.Date != nil }

// PriceTrail holds the five post-event observations.
type PriceTrail struct {
	Day0  Observation // last close strictly before the event
	Day1  Observation // close on the event date
	Day2  Observation // first close on/after event+1
	Day7  Observation // first close on/after event+7
	Day30 Observation // first close on/after event+30
}

// Ranks are the cross-sectional fields written by the ranker. Nil means the
// value or its cohort was absent.
type Ranks struct {
	AIS      *float64
	NaiveAIS *float64
	AISDelta *float64
	SUE      *float64
	// Score is the combined rank score, set only when AIS, AISDelta and SUE ranks all exist.
	Score *float64
}

// EarningsEvent is one company's one earnings disclosure.
type EarningsEvent struct {
	Ticker    string
	Timestamp string    // as reported by the data service
	Date      time.Time // UTC midnight; unique per ticker
	Year      int
	Quarter   int

	EstimatedEPS  *float64
	ActualEPS     *float64
	HistoricalEPS []float64 // most recent first

	Transcript string
	Summary    string

	AIS            *float64
	AISDetail      json.RawMessage
	NaiveAIS       *float64
	NaiveAISDetail json.RawMessage
	SUE            *float64
	AISDelta       *float64

	Prices PriceTrail
	Ranks  Ranks

	Stage    Stage
	ScoredAt time.Time
}

// Key returns the per-ticker dedup key.
func (e *EarningsEvent) Key() string { return FormatDate(e.Date) }

// Float returns a pointer to v; handy for optional numeric fields.
func Float(v float64) *float64 { return &v }
