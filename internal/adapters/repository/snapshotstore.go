package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/earnsignal/internal/domain/model"
	"github.com/okian/earnsignal/internal/domain/ranking"
	"github.com/okian/earnsignal/pkg/metrics"
)

const defaultMaxLimit = 500

// SnapshotStore is an in-memory Store. Replace swaps the whole state
// atomically; readers never see a partial run.
type SnapshotStore struct {
	maxLimit int

	mu        sync.RWMutex
	snapshots []ranking.Snapshot
	byDate    map[string]int
	// board is the latest snapshot ordered by combined score desc, missing
	// scores last, then ticker.
	board  []Entry
	byTick map[string]int
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{maxLimit: defaultMaxLimit, byDate: map[string]int{}, byTick: map[string]int{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replace installs the snapshots of a run; they must be ascending by date.
func (s *SnapshotStore) Replace(snapshots []ranking.Snapshot) {
	byDate := make(map[string]int, len(snapshots))
	for i := range snapshots {
		byDate[model.FormatDate(snapshots[i].Date)] = i
	}
	var board []Entry
	byTick := map[string]int{}
	if n := len(snapshots); n > 0 {
		board = leaderboard(&snapshots[n-1])
		for i, e := range board {
			byTick[e.Ticker] = i
		}
	}

	s.mu.Lock()
	s.snapshots, s.byDate, s.board, s.byTick = snapshots, byDate, board, byTick
	s.mu.Unlock()
	metrics.UpdateSnapshots(len(snapshots))
}

func leaderboard(snap *ranking.Snapshot) []Entry {
	idx := make([]int, len(snap.Events))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := &snap.Events[idx[a]], &snap.Events[idx[b]]
		sa, sb := ea.Ranks.Score, eb.Ranks.Score
		switch {
		case sa != nil && sb == nil:
			return true
		case sa == nil && sb != nil:
			return false
		case sa != nil && *sa != *sb:
			return *sa > *sb
		}
		return ea.Ticker < eb.Ticker
	})
	out := make([]Entry, len(idx))
	for rank, i := range idx {
		out[rank] = entryOf(rank+1, &snap.Events[i])
	}
	return out
}

// Dates lists snapshot dates ascending.
func (s *SnapshotStore) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.snapshots))
	for i := range s.snapshots {
		out[i] = model.FormatDate(s.snapshots[i].Date)
	}
	return out
}

// Snapshot returns the snapshot for date (YYYY-MM-DD).
func (s *SnapshotStore) Snapshot(date string) (ranking.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byDate[date]
	if !ok {
		return ranking.Snapshot{}, false
	}
	return s.snapshots[i], true
}

// Latest returns the most recent snapshot.
func (s *SnapshotStore) Latest() (ranking.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return ranking.Snapshot{}, false
	}
	return s.snapshots[len(s.snapshots)-1], true
}

// TopN returns up to n leaderboard rows; n above the store limit is capped.
func (s *SnapshotStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	if n > s.maxLimit {
		n = s.maxLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, ErrNoSnapshots
	}
	n = min(n, len(s.board))
	out := make([]Entry, n)
	copy(out, s.board[:n])
	return out, nil
}

// Rank returns ticker's leaderboard row.
func (s *SnapshotStore) Rank(_ context.Context, ticker string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byTick[ticker]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return s.board[i], nil
}

// Count returns the number of tickers in the latest snapshot.
func (s *SnapshotStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.board)
}
