// Package repository keeps the ranked snapshots of the last run and answers
// leaderboard queries on the latest one.
package repository

import (
	"context"
	"time"

	"github.com/okian/earnsignal/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank     int
	Ticker   string
	Date     time.Time
	Score    *float64
	AIS      *float64
	AISDelta *float64
	SUE      *float64
}

// Store provides read access to the ranking state.
type Store interface {
	// Rank returns the ticker's row in the latest snapshot.
	// Returns ErrNotFound if the ticker is unknown.
	Rank(ctx context.Context, ticker string) (Entry, error)

	// TopN returns the first n rows ordered by combined score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of tickers in the latest snapshot.
	Count(ctx context.Context) int
}

func entryOf(rank int, e *model.EarningsEvent) Entry {
	return Entry{
		Rank:     rank,
		Ticker:   e.Ticker,
		Date:     e.Date,
		Score:    e.Ranks.Score,
		AIS:      e.AIS,
		AISDelta: e.AISDelta,
		SUE:      e.SUE,
	}
}
