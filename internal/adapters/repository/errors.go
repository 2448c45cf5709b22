package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound     = errors.New("ticker not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrNoSnapshots  = errors.New("no snapshots loaded")
)
