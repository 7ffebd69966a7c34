package session

import (
	"context"
	"io"
	"os/exec"
)

// Executor abstracts process creation so tests can script child behaviour.
type Executor interface {
	Command(ctx context.Context, name string, args ...string) Command
}

// Command is the subset of exec.Cmd a session needs.
type Command interface {
	SetStdin(r io.Reader)
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)
	Start() error
	Wait() error
	// ExitCode returns the child's exit status after Wait, or -1 if the
	// process never ran or was terminated by a signal.
	ExitCode() int
}

// DefaultExecutor creates real processes using os/exec.
type DefaultExecutor struct{}

// Command returns a Command bound to ctx; cancelling ctx kills the child.
func (DefaultExecutor) Command(ctx context.Context, name string, args ...string) Command {
	return &execCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

type execCommand struct {
	cmd *exec.Cmd
}

func (c *execCommand) SetStdin(r io.Reader) { c.cmd.Stdin = r }

func (c *execCommand) StdoutPipe() (io.ReadCloser, error) { return c.cmd.StdoutPipe() }

func (c *execCommand) StderrPipe() (io.ReadCloser, error) { return c.cmd.StderrPipe() }

func (c *execCommand) Start() error { return c.cmd.Start() }

func (c *execCommand) Wait() error { return c.cmd.Wait() }

func (c *execCommand) ExitCode() int {
	if c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}
