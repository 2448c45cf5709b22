package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/internal/adapters/ratelimit"
	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

const defaultMaxRetries = 5

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache sets the response cache.
func WithCache(s cache.Store) Option {
	return func(g *Gateway) {
		if s != nil {
			g.cache = s
		}
	}
}

// WithTokenBucket sets the throughput gate.
func WithTokenBucket(b *ratelimit.TokenBucket) Option {
	return func(g *Gateway) {
		if b != nil {
			g.bucket = b
		}
	}
}

// WithAdmission sets the concurrency gate.
func WithAdmission(a *ratelimit.Admission) Option {
	return func(g *Gateway) {
		if a != nil {
			g.admission = a
		}
	}
}

// WithMaxRetries sets the number of attempts per request.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s ratelimit.Sleeper) Option {
	return func(g *Gateway) {
		if s != nil {
			g.sleep = s
		}
	}
}

// WithJitter replaces the source of the [0,1) second backoff jitter.
func WithJitter(f func() float64) Option {
	return func(g *Gateway) {
		if f != nil {
			g.jitter = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway fronts a Completer with a response cache, a token bucket, an
// admission limiter and jittered exponential backoff on rate limiting.
type Gateway struct {
	completer  Completer
	cache      cache.Store
	bucket     *ratelimit.TokenBucket
	admission  *ratelimit.Admission
	maxRetries int
	sleep      ratelimit.Sleeper
	jitter     func() float64
	logger     logger.Logger
}

// NewGateway wraps c. Defaults: no cache, 3 tokens/s with a burst of 10,
// 3 concurrent requests, 5 attempts.
func NewGateway(c Completer, opts ...Option) *Gateway {
	g := &Gateway{
		completer:  c,
		cache:      cache.Nop{},
		maxRetries: defaultMaxRetries,
		sleep:      ratelimit.Sleep,
		jitter:     rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bucket == nil {
		g.bucket = ratelimit.NewTokenBucket(3, 10)
	}
	if g.admission == nil {
		g.admission = ratelimit.NewAdmission("ai_api", 3)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("ai")
	}
	return g
}

// Complete answers req, from cache when possible. kind labels metrics.
func (g *Gateway) Complete(ctx context.Context, kind string, req Request) (string, error) {
	key := cache.PromptKey(req.System, req.User)
	if body, ok, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn(ctx, "ai cache lookup failed", logger.String("kind", kind), logger.Error(err))
	} else if ok {
		metrics.RecordAIRequest(kind, "cache_hit", 0)
		return string(body), nil
	}

	for attempt := 0; attempt < g.maxRetries; attempt++ {
		out, err := g.attempt(ctx, kind, req)
		if err == nil {
			if err := g.cache.Put(ctx, key, []byte(out)); err != nil {
				g.logger.Warn(ctx, "ai cache write failed", logger.String("kind", kind), logger.Error(err))
			}
			return out, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}
		metrics.RecordAIRetry()
		delay := time.Duration((float64(int(1)<<attempt) + g.jitter()) * float64(time.Second))
		g.logger.Warn(ctx, "rate limited by ai service, backing off",
			logger.String("kind", kind), logger.Int("attempt", attempt+1), logger.Duration("delay", delay))
		if err := g.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w after %d attempts", kind, ErrRetriesExceeded, g.maxRetries)
}

func (g *Gateway) attempt(ctx context.Context, kind string, req Request) (string, error) {
	if err := g.bucket.Wait(ctx); err != nil {
		return "", err
	}
	release, err := g.admission.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	start := time.Now()
	out, err := g.completer.Complete(ctx, req)
	switch {
	case errors.Is(err, ErrRateLimited):
		metrics.RecordAIRequest(kind, "rate_limited", time.Since(start))
	case err != nil:
		metrics.RecordAIRequest(kind, "error", time.Since(start))
	default:
		metrics.RecordAIRequest(kind, "ok", time.Since(start))
	}
	return out, err
}
