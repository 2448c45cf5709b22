// Package ratelimit provides the two gates shared by all ticker workers: a
// counting admission limiter and a refill-on-demand token bucket.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/okian/earnsignal/pkg/metrics"
)

// Admission bounds the number of concurrent operations.
type Admission struct {
	name string
	sem  *semaphore.Weighted
	size int64
}

// NewAdmission returns a limiter with size permits. name labels wait metrics.
func NewAdmission(name string, size int) *Admission {
	if size < 1 {
		size = 1
	}
	return &Admission{name: name, sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size returns the permit count.
func (a *Admission) Size() int { return int(a.size) }

// Acquire blocks until a permit is free or ctx is done. The returned release
// must be called exactly once.
func (a *Admission) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	metrics.RecordLimiterWait(a.name, time.Since(start))
	return func() { a.sem.Release(1) }, nil
}

// Do runs fn holding a permit. The permit is released when fn returns,
// including on error or panic.
func (a *Admission) Do(ctx context.Context, fn func(context.Context) error) error {
	release, err := a.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
