// Package models contains the data structures used throughout hostfan.
package models

import "time"

// Default values applied by SSHOptions.ApplyDefaults and the CLI.
const (
	DefaultSSHBinary      = "ssh"
	DefaultConnectTimeout = 6 * time.Second
	DefaultLogLevel       = "ERROR"
	DefaultMaxProcs       = 50
)

// RunRequest describes one fan-out run: the hosts, the remote command and
// how the sessions should be executed. It is read-only once handed to the
// runner.
type RunRequest struct {
	Hosts         []string
	Command       []string
	InputFile     string // optional; opened once per session as child stdin
	CaptureOutput bool   // gather stdout in memory instead of forwarding it
	MaxProcs      int    // maximum parallel sessions, 0 = unlimited
	Insecure      bool   // skip host key verification
	SSH           SSHOptions
}

// SSHOptions controls how the ssh binary is invoked.
type SSHOptions struct {
	Binary         string
	ConnectTimeout time.Duration
	LogLevel       string
}

// ApplyDefaults fills zero-valued fields with the standard invocation values.
func (o *SSHOptions) ApplyDefaults() {
	if o.Binary == "" {
		o.Binary = DefaultSSHBinary
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.LogLevel == "" {
		o.LogLevel = DefaultLogLevel
	}
}
