package fetcher

import (
	"errors"
	"fmt"
)

// ErrRetriesExceeded is returned when every attempt was throttled.
var ErrRetriesExceeded = errors.New("retries exceeded")

// StatusError is a non-success, non-throttling response. It is not retried.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
