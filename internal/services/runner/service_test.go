package runner

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgeck/hostfan/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Mock implementations.
type mockSessions struct {
	runFunc func(ctx context.Context, host string, req models.RunRequest) (*models.HostResult, error)
}

func (m *mockSessions) Run(ctx context.Context, host string, req models.RunRequest) (*models.HostResult, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, host, req)
	}
	return &models.HostResult{Host: host}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRun_EmptyHostList(t *testing.T) {
	var sessionsRun atomic.Int32
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(_ context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			sessionsRun.Add(1)
			return &models.HostResult{Host: host}, nil
		},
	})

	res, err := svc.Run(context.Background(), models.RunRequest{Command: []string{"true"}})

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, res.FailedHosts)
	assert.Equal(t, int32(0), sessionsRun.Load())
}

func TestRun_AllHostsSucceed(t *testing.T) {
	svc := NewWithSessions(testLogger(), &mockSessions{})

	res, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:   []string{"a", "b", "c"},
		Command: []string{"true"},
	})

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, res.FailedHosts)
}

func TestRun_FailuresAreIsolatedPerHost(t *testing.T) {
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(_ context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			res := &models.HostResult{Host: host}
			if host == "b" || host == "d" {
				res.ExitCode = 1
			}
			return res, nil
		},
	})

	res, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:   []string{"a", "b", "c", "d"},
		Command: []string{"false"},
	})

	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.ElementsMatch(t, []string{"b", "d"}, res.FailedHosts)
}

func TestRun_CaptureOutputsOnlyForSucceededHosts(t *testing.T) {
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(_ context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			res := &models.HostResult{Host: host, Output: []byte(host + " out")}
			if host == "bad" {
				res.ExitCode = 2
			}
			return res, nil
		},
	})

	res, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:         []string{"good", "bad"},
		Command:       []string{"hostname"},
		CaptureOutput: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("good out"), res.Outputs["good"])
	assert.NotContains(t, res.Outputs, "bad")
	assert.Equal(t, []string{"bad"}, res.FailedHosts)
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int32

	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(_ context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return &models.HostResult{Host: host}, nil
		},
	})

	_, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:    []string{"h1", "h2", "h3", "h4", "h5"},
		Command:  []string{"true"},
		MaxProcs: 2,
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_FaultCancelsSiblingsAndIsReraised(t *testing.T) {
	spawnErr := errors.New("could not start process")

	var cancelled atomic.Int32
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(ctx context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			if host == "broken" {
				return nil, spawnErr
			}
			select {
			case <-ctx.Done():
				cancelled.Add(1)
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &models.HostResult{Host: host}, nil
			}
		},
	})

	res, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:   []string{"a", "broken", "b", "c"},
		Command: []string{"true"},
	})

	require.Error(t, err)
	assert.Equal(t, spawnErr, err, "the original fault is the one reported")
	assert.Nil(t, res)
	assert.Equal(t, int32(3), cancelled.Load(), "all sibling sessions observed cancellation")
}

func TestRun_WaitsForCancelledSessionsToSettle(t *testing.T) {
	var settled atomic.Int32
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(ctx context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			if host == "broken" {
				return nil, errors.New("boom")
			}
			<-ctx.Done()
			// Simulate cleanup before the session reports settled.
			time.Sleep(30 * time.Millisecond)
			settled.Add(1)
			return nil, ctx.Err()
		},
	})

	_, err := svc.Run(context.Background(), models.RunRequest{
		Hosts:   []string{"broken", "slow1", "slow2"},
		Command: []string{"true"},
	})

	require.Error(t, err)
	assert.Equal(t, int32(2), settled.Load(), "Run returned before all sessions settled")
}

func TestEach_FaultDoesNotCancelSiblings(t *testing.T) {
	faultErr := errors.New("boom")

	var completed atomic.Int32
	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(ctx context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			if host == "broken" {
				return nil, faultErr
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(30 * time.Millisecond):
				completed.Add(1)
				return &models.HostResult{Host: host}, nil
			}
		},
	})

	res, err := svc.Each(context.Background(), models.RunRequest{
		Hosts:   []string{"broken", "a", "b"},
		Command: []string{"true"},
	})

	assert.Equal(t, faultErr, err)
	require.NotNil(t, res, "embedding callers still get the partial result")
	assert.True(t, res.OK())
	assert.Equal(t, int32(2), completed.Load(), "siblings ran to completion")
}

func TestRun_CallerCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	svc := NewWithSessions(testLogger(), &mockSessions{
		runFunc: func(ctx context.Context, host string, _ models.RunRequest) (*models.HostResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = svc.Run(ctx, models.RunRequest{
			Hosts:   []string{"a", "b"},
			Command: []string{"sleep", "60"},
		})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after caller cancellation")
	}

	assert.ErrorIs(t, err, context.Canceled)
}
