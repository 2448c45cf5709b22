package worker

import (
	"errors"
	"fmt"
)

// ErrPoolStopped is returned when the run's context ends before every
// ticker was processed.
var ErrPoolStopped = errors.New("worker pool stopped")

// TickerError ties a pipeline failure to its ticker.
type TickerError struct {
	Ticker string
	Err    error
}

func (e *TickerError) Error() string { return fmt.Sprintf("ticker %s: %v", e.Ticker, e.Err) }

func (e *TickerError) Unwrap() error { return e.Err }
