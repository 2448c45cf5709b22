package ai

import "errors"

var (
	// ErrRateLimited marks a "too many requests" answer from the AI service.
	ErrRateLimited = errors.New("ai service rate limited")
	// ErrRetriesExceeded is returned when every attempt was rate limited.
	ErrRetriesExceeded = errors.New("ai retries exceeded")
	// ErrEmptyResponse is returned when a completion has no choices.
	ErrEmptyResponse = errors.New("ai response has no choices")
)
