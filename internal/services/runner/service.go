// Package runner fans a request out into one session per host, bounded by
// the concurrency gate, and aggregates the per-host outcomes.
package runner

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/fgeck/hostfan/internal/models"
	"github.com/fgeck/hostfan/internal/services/fault"
	"github.com/fgeck/hostfan/internal/services/gate"
	"github.com/fgeck/hostfan/internal/services/mux"
	"github.com/fgeck/hostfan/internal/services/session"
	"github.com/rs/zerolog"
)

// Service defines the interface for the run orchestrator.
type Service interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error)
	Each(ctx context.Context, req models.RunRequest) (*models.RunResult, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	sessions session.Service
	logger   zerolog.Logger
}

// New creates a runner emitting live output to the process stdout/stderr.
func New(logger zerolog.Logger) *Impl {
	return NewWithWriters(logger, os.Stdout, os.Stderr)
}

// NewWithWriters creates a runner emitting live output to the given sinks.
func NewWithWriters(logger zerolog.Logger, stdout, stderr io.Writer) *Impl {
	return &Impl{
		sessions: session.New(logger, mux.NewSyncWriter(stdout), mux.NewSyncWriter(stderr)),
		logger:   logger,
	}
}

// NewWithSessions creates a runner with a custom session service (for testing).
func NewWithSessions(logger zerolog.Logger, sessions session.Service) *Impl {
	return &Impl{
		sessions: sessions,
		logger:   logger,
	}
}

// Run executes the request and blocks until every session has settled. The
// first orchestration fault cancels all sibling sessions and is returned
// once they have unwound; per-host command failures never abort siblings and
// are reported in the result instead.
func (s *Impl) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	if len(req.Hosts) == 0 {
		return emptyResult(), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := fault.New(cancel)
	res := s.fanOut(runCtx, req, ctrl)

	if err := ctrl.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

// Each is the embedding entry point: faults do not cancel sibling sessions
// beyond what ctx dictates. The partial result is returned alongside the
// first fault so an embedding caller can still inspect the hosts that
// completed.
func (s *Impl) Each(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	if len(req.Hosts) == 0 {
		return emptyResult(), nil
	}

	ctrl := fault.New(nil)
	res := s.fanOut(ctx, req, ctrl)

	return res, ctrl.Err()
}

// fanOut launches one session per host through the gate and waits for every
// one of them to settle. Sessions report outcomes as discrete messages on a
// channel; only fanOut touches the aggregate collections.
func (s *Impl) fanOut(ctx context.Context, req models.RunRequest, ctrl *fault.Controller) *models.RunResult {
	s.logger.Info().
		Int("hosts", len(req.Hosts)).
		Int("max_procs", req.MaxProcs).
		Strs("command", req.Command).
		Msg("starting run")

	g := gate.New(req.MaxProcs)
	outcomes := make(chan *models.HostResult, len(req.Hosts))

	var wg sync.WaitGroup
	for _, host := range req.Hosts {
		wg.Add(1)

		go func(host string) {
			defer wg.Done()

			if err := g.Acquire(ctx); err != nil {
				ctrl.Report(err)
				return
			}
			defer g.Release()

			res, err := s.sessions.Run(ctx, host, req)
			if err != nil {
				s.logger.Debug().Err(err).Str("host", host).Msg("session aborted")
				ctrl.Report(err)
				return
			}

			outcomes <- res
		}(host)
	}

	wg.Wait()
	close(outcomes)

	result := emptyResult()
	for res := range outcomes {
		if res.Failed() {
			result.FailedHosts = append(result.FailedHosts, res.Host)
			continue
		}
		if req.CaptureOutput {
			result.Outputs[res.Host] = res.Output
		}
	}

	s.logger.Info().
		Int("failed", len(result.FailedHosts)).
		Msg("run finished")

	return result
}

func emptyResult() *models.RunResult {
	return &models.RunResult{Outputs: map[string][]byte{}}
}
