// Package gate provides bounded admission control for parallel sessions.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate limits the number of sessions running at once. A Gate with zero
// capacity is unlimited: Acquire and Release are no-ops.
type Gate struct {
	sem *semaphore.Weighted
}

// New creates a gate admitting at most n concurrent holders. n == 0 means
// unlimited.
func New(n int) *Gate {
	if n <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.sem == nil {
		return nil
	}
	return g.sem.Acquire(ctx, 1)
}

// Release frees one slot. It must be called exactly once per successful
// Acquire, on every exit path.
func (g *Gate) Release() {
	if g.sem == nil {
		return
	}
	g.sem.Release(1)
}
