// Package mux turns the raw byte chunks read from a session's output pipes
// into hostname-prefixed lines. Each complete line is written to the sink as
// a single Write call, so lines from parallel sessions may interleave but are
// never split mid-line.
package mux

import (
	"bytes"
	"io"
	"sync"
)

// SyncWriter serialises writes to a shared sink. Wrapping stdout/stderr in a
// SyncWriter is what makes per-line emission atomic across sessions.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w so that each Write holds the sink exclusively.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// LineWriter buffers one stream of a session and emits `[host] ` prefixed
// lines to the sink. Incomplete trailing fragments are retained until the
// next chunk arrives or Flush is called.
type LineWriter struct {
	sink   io.Writer
	prefix []byte
	buf    []byte
}

// NewLineWriter creates a line writer for the given host. The sink must
// serialise concurrent writes itself (see SyncWriter).
func NewLineWriter(sink io.Writer, host string) *LineWriter {
	return &LineWriter{
		sink:   sink,
		prefix: []byte("[" + host + "] "),
	}
}

// Write appends chunk to the buffer and emits every complete line.
func (l *LineWriter) Write(chunk []byte) (int, error) {
	l.buf = append(l.buf, chunk...)

	pos := bytes.LastIndexByte(l.buf, '\n')
	if pos == -1 {
		return len(chunk), nil
	}

	rest := l.buf[:pos+1]
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		line := rest[:nl+1]
		rest = rest[nl+1:]

		out := make([]byte, 0, len(l.prefix)+len(line))
		out = append(out, l.prefix...)
		out = append(out, line...)
		if _, err := l.sink.Write(out); err != nil {
			return len(chunk), err
		}
	}

	l.buf = l.buf[pos+1:]

	return len(chunk), nil
}

// Flush emits a retained newline-less fragment, appending a synthetic
// terminator. This is the only case where an emitted line lacks a
// source-provided newline. Flushing an empty buffer is a no-op, so calling
// Flush twice emits nothing twice.
func (l *LineWriter) Flush() error {
	if len(l.buf) == 0 {
		return nil
	}

	out := make([]byte, 0, len(l.prefix)+len(l.buf)+1)
	out = append(out, l.prefix...)
	out = append(out, l.buf...)
	out = append(out, '\n')
	l.buf = nil

	_, err := l.sink.Write(out)

	return err
}

// Capture retains every byte verbatim. Used for stdout in capture mode,
// where no prefixing or line splitting happens.
type Capture struct {
	buf bytes.Buffer
}

// NewCapture creates an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Bytes returns everything captured so far.
func (c *Capture) Bytes() []byte {
	return c.buf.Bytes()
}
