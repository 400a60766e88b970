// Package guard serializes the critical sections of every event handler in
// the process. At most one holder exists at any time.
package guard

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

type Guard struct {
	sem *semaphore.Weighted

	// OnAcquire, if set, is called with the time spent waiting for the guard.
	OnAcquire func(waited time.Duration)
}

func New() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// Do runs fn while holding the guard. The guard is released when fn returns
// or panics. If ctx is done before the guard is acquired, fn is not run and
// ctx.Err() is returned.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.OnAcquire != nil {
		g.OnAcquire(time.Since(start))
	}

	return fn(ctx)
}
