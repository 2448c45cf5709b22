package fetcher

import (
	"net/http"
	"time"

	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/internal/adapters/ratelimit"
	"github.com/okian/earnsignal/pkg/logger"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithCache sets the response cache.
func WithCache(s cache.Store) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.cache = s
		}
	}
}

// WithAdmission sets the limiter shared by every fetch.
func WithAdmission(a *ratelimit.Admission) Option {
	return func(f *Fetcher) {
		if a != nil {
			f.admission = a
		}
	}
}

// WithMaxRetries sets the number of attempts per fetch.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRetries = n
		}
	}
}

// WithBackoffUnit sets the base of the 2^attempt backoff.
func WithBackoffUnit(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.unit = d
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s ratelimit.Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}
