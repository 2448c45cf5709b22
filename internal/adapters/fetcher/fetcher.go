// Package fetcher performs cached, admission-limited GET requests with
// bounded exponential backoff on throttling and transport failures.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/internal/adapters/ratelimit"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
)

// Fetcher is safe for concurrent use.
type Fetcher struct {
	client     *http.Client
	cache      cache.Store
	admission  *ratelimit.Admission
	maxRetries int
	unit       time.Duration
	sleep      ratelimit.Sleeper
	logger     logger.Logger
}

// New returns a Fetcher. Without options it has no cache, five permits and
// three attempts with a one-second backoff unit.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: defaultTimeout},
		cache:      cache.Nop{},
		admission:  ratelimit.NewAdmission("data_api", 5),
		maxRetries: defaultMaxRetries,
		unit:       time.Second,
		sleep:      ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Get().Named("fetcher")
	}
	return f
}

// Fetch returns the body of url. A cached body is returned without any
// network I/O. Throttled responses and transport errors are retried after
// 2^attempt backoff units; other non-2xx statuses fail at once with a
// *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	release, err := f.admission.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	key := cache.URLKey(url)
	if body, ok, err := f.cache.Get(ctx, key); err != nil {
		f.logger.Warn(ctx, "cache lookup failed", logger.String("url", Redact(url)), logger.Error(err))
	} else if ok {
		metrics.RecordFetch("cache_hit")
		return body, nil
	}

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		last := attempt == f.maxRetries-1
		backoff := f.unit * time.Duration(1<<attempt)

		body, status, err := f.do(ctx, url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.RecordFetch("transport_error")
			if last {
				return nil, fmt.Errorf("GET %s: %w", Redact(url), err)
			}
			metrics.RecordFetchRetry("transport")
			f.logger.Warn(ctx, "transport error, backing off",
				logger.String("url", Redact(url)), logger.Int("attempt", attempt+1),
				logger.Duration("backoff", backoff), logger.Error(err))
		case status == http.StatusTooManyRequests:
			metrics.RecordFetch("throttled")
			if last {
				continue
			}
			metrics.RecordFetchRetry("throttled")
			f.logger.Warn(ctx, "throttled, backing off",
				logger.String("url", Redact(url)), logger.Int("attempt", attempt+1),
				logger.Duration("backoff", backoff))
		case status < 200 || status > 299:
			metrics.RecordFetch("status_error")
			return nil, &StatusError{URL: Redact(url), StatusCode: status}
		default:
			metrics.RecordFetch("ok")
			if err := f.cache.Put(ctx, key, body); err != nil {
				f.logger.Warn(ctx, "cache write failed", logger.String("url", Redact(url)), logger.Error(err))
			}
			return body, nil
		}

		if err := f.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("GET %s: %w after %d attempts", Redact(url), ErrRetriesExceeded, f.maxRetries)
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, int, error) {
	start := time.Now()
	defer func() { metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds())) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	f.logger.Debug(ctx, "fetched", logger.String("url", Redact(url)),
		logger.Int("bytes", len(body)), logger.Duration("took", time.Since(start)))
	return body, resp.StatusCode, nil
}

var apiKeyParam = regexp.MustCompile(`(?i)(apikey=)[^&]*`)

// Redact masks the API key in a URL for logging.
func Redact(url string) string {
	return apiKeyParam.ReplaceAllString(url, "${1}***")
}

