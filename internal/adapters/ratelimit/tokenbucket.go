package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/earnsignal/pkg/metrics"
)

// Clock returns the current time.
type Clock func() time.Time

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BucketOption configures a TokenBucket.
type BucketOption func(*TokenBucket)

// WithClock replaces the time source.
func WithClock(c Clock) BucketOption {
	return func(b *TokenBucket) {
		if c != nil {
			b.now = c
		}
	}
}

// WithSleeper replaces the wait primitive.
func WithSleeper(s Sleeper) BucketOption {
	return func(b *TokenBucket) {
		if s != nil {
			b.sleep = s
		}
	}
}

// WithName labels the bucket's wait metrics.
func WithName(name string) BucketOption {
	return func(b *TokenBucket) { b.name = name }
}

// TokenBucket admits rate operations per second with bursts up to max.
// Tokens are refilled from elapsed time on every call; there is no
// background timer.
type TokenBucket struct {
	rate float64
	max  float64

	now   Clock
	sleep Sleeper
	name  string

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(rate, max float64, opts ...BucketOption) *TokenBucket {
	b := &TokenBucket{rate: rate, max: max, now: time.Now, sleep: Sleep, name: "ai_tokens"}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = max
	b.lastRefill = b.now()
	return b
}

// Wait takes one token, suspending until one is available. Time spent
// waiting is re-accounted on the next pass.
func (b *TokenBucket) Wait(ctx context.Context) error {
	var waited time.Duration
	for {
		wait, ok := b.take()
		if ok {
			if waited > 0 {
				metrics.RecordLimiterWait(b.name, waited)
			}
			return nil
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

func (b *TokenBucket) take() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	secs := (1 - b.tokens) / b.rate
	return time.Duration(math.Ceil(secs * float64(time.Second))), false
}

// Tokens reports the current token count without refilling.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
