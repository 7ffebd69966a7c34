package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Unlimited(t *testing.T) {
	g := New(0)

	// Any number of acquires succeed immediately.
	for i := 0; i < 100; i++ {
		require.NoError(t, g.Acquire(context.Background()))
	}
	for i := 0; i < 100; i++ {
		g.Release()
	}
}

func TestGate_BoundsConcurrency(t *testing.T) {
	const limit = 2
	const workers = 5

	g := New(limit)

	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if !assert.NoError(t, g.Acquire(context.Background())) {
				return
			}
			defer g.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestGate_AcquireHonoursCancellation(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_ReleaseFreesSlot(t *testing.T) {
	g := New(1)
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Acquire(ctx))
	g.Release()
}
