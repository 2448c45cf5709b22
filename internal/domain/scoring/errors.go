package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	// ErrMalformedScores marks a structured score response that is not a JSON
	// object or carries a non-numeric Score leaf.
	ErrMalformedScores = errors.New("malformed score response")
	// ErrMissingScore marks a naive score response without a numeric top-level score.
	ErrMissingScore = errors.New("missing score")
)
