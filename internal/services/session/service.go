// Package session manages the lifecycle of one remote command on one host:
// building the ssh invocation, spawning the child, draining its output
// through the multiplexer and interpreting its exit status.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fgeck/hostfan/internal/models"
	"github.com/fgeck/hostfan/internal/services/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSpawn is returned when the child process could not be started.
	ErrSpawn = errors.New("could not start process")
	// ErrDrain is returned when an output pipe could not be read.
	ErrDrain = errors.New("failed to read output stream")
	// ErrAbnormalExit is returned when the child terminated without a
	// normal exit status, e.g. killed by a signal.
	ErrAbnormalExit = errors.New("process terminated abnormally")
)

// Service defines the interface for running one session.
type Service interface {
	Run(ctx context.Context, host string, req models.RunRequest) (*models.HostResult, error)
}

// Impl implements the session Service interface. The sinks are shared
// across all sessions and must serialise concurrent writes (see
// mux.SyncWriter).
type Impl struct {
	executor Executor
	logger   zerolog.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// New creates a session service emitting live output to the given sinks.
func New(logger zerolog.Logger, stdout, stderr io.Writer) *Impl {
	return &Impl{
		executor: DefaultExecutor{},
		logger:   logger,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// NewWithExecutor creates a session service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, stdout, stderr io.Writer, executor Executor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// BuildArgs constructs the ssh argument list for one host: the fixed safety
// options, the insecure host-key options when requested, then the host and
// the remote command.
func BuildArgs(host string, req models.RunRequest) []string {
	opts := req.SSH
	opts.ApplyDefaults()

	args := []string{
		"-T",
		"-o", "LogLevel=" + opts.LogLevel,
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(opts.ConnectTimeout.Seconds())),
	}
	if req.Insecure {
		args = append(args,
			"-o", "StrictHostKeyChecking=no",
			"-o", "UserKnownHostsFile="+os.DevNull,
		)
	}
	args = append(args, host)
	args = append(args, req.Command...)

	return args
}

// Run executes the remote command on host and blocks until the session is
// finished: process exited and both output pipes drained to EOF. A nonzero
// exit code is a recorded failure reported in the result, not an error;
// errors are orchestration faults (spawn or stream I/O problems).
//
//nolint:gocognit // session lifecycle has several settle paths
func (s *Impl) Run(ctx context.Context, host string, req models.RunRequest) (*models.HostResult, error) {
	opts := req.SSH
	opts.ApplyDefaults()

	args := BuildArgs(host, req)
	s.logger.Debug().
		Str("host", host).
		Str("binary", opts.Binary).
		Strs("args", args).
		Msg("spawning session")

	cmd := s.executor.Command(ctx, opts.Binary, args...)

	if req.InputFile != "" {
		in, err := os.Open(req.InputFile)
		if err != nil {
			return nil, fmt.Errorf("opening input file: %w", err)
		}
		// Closed exactly once when the session settles, on every exit path.
		defer in.Close()
		cmd.SetStdin(in)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Join(ErrSpawn, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Join(ErrSpawn, err)
	}

	var capture *mux.Capture
	var stdoutLines *mux.LineWriter
	var stdoutDst io.Writer
	if req.CaptureOutput {
		capture = mux.NewCapture()
		stdoutDst = capture
	} else {
		stdoutLines = mux.NewLineWriter(s.stdout, host)
		stdoutDst = stdoutLines
	}
	stderrLines := mux.NewLineWriter(s.stderr, host)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Join(ErrSpawn, err)
	}

	// Completion needs process exit AND both pipes at EOF; output can still
	// arrive after the exit signal, so draining to EOF before Wait is what
	// prevents truncation.
	g := &errgroup.Group{}
	g.Go(func() error { return drain(stdoutDst, stdoutPipe) })
	g.Go(func() error { return drain(stderrLines, stderrPipe) })
	drainErr := g.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if ctx.Err() != nil {
		// Cancelled sessions emit nothing beyond what was already flushed.
		return nil, ctx.Err()
	}
	if drainErr != nil {
		return nil, errors.Join(ErrDrain, drainErr)
	}

	// The one final flush, on the transition into finished.
	if stdoutLines != nil {
		if err := stdoutLines.Flush(); err != nil {
			return nil, errors.Join(ErrDrain, err)
		}
	}
	if err := stderrLines.Flush(); err != nil {
		return nil, errors.Join(ErrDrain, err)
	}

	res := &models.HostResult{
		Host:     host,
		Duration: duration,
	}
	if capture != nil {
		res.Output = capture.Bytes()
	}

	if waitErr != nil {
		code := cmd.ExitCode()
		if code == 0 {
			// Wait failed without the child reporting any exit status.
			return nil, errors.Join(ErrAbnormalExit, waitErr)
		}
		// Negative codes (signal-killed children) are recorded failures
		// like any other nonzero status: siblings keep running.
		res.ExitCode = code
		s.logger.Debug().
			Str("host", host).
			Int("exit_code", code).
			Dur("duration", duration).
			Msg("session finished with failure")

		return res, nil
	}

	s.logger.Debug().
		Str("host", host).
		Dur("duration", duration).
		Msg("session finished")

	return res, nil
}

// drain copies pipe contents into dst until EOF. On a write error the rest
// of the pipe is discarded so the child never blocks on a full pipe buffer.
func drain(dst io.Writer, src io.ReadCloser) error {
	_, err := io.Copy(dst, src)
	if err != nil {
		_, _ = io.Copy(io.Discard, src)
		return err
	}
	return nil
}
