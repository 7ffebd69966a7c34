package models

import "time"

// HostResult holds the outcome of one session.
type HostResult struct {
	Host     string
	ExitCode int
	Duration time.Duration
	Output   []byte // stdout, only populated in capture mode
}

// Failed reports whether the remote command exited nonzero.
func (r HostResult) Failed() bool {
	return r.ExitCode != 0
}

// RunResult aggregates the outcomes of a whole run.
type RunResult struct {
	FailedHosts []string          // hosts whose command exited nonzero, in completion order
	Outputs     map[string][]byte // host -> captured stdout, only in capture mode
}

// OK reports whether every host succeeded.
func (r *RunResult) OK() bool {
	return len(r.FailedHosts) == 0
}
