// Package fault captures the first unrecoverable error of a run and
// broadcasts cancellation to every other in-flight session.
package fault

import "sync"

// Controller holds a single fault slot. The first Report wins: it records
// the error and fires the cancel broadcast exactly once; later reports are
// no-ops.
type Controller struct {
	mu     sync.Mutex
	err    error
	cancel func()
}

// New creates a controller that calls cancel when the first fault arrives.
// cancel may be nil when the engine is embedded and the caller owns
// cancellation.
func New(cancel func()) *Controller {
	return &Controller{cancel: cancel}
}

// Report records err if the slot is empty and requests cancellation of all
// sibling sessions. Reporting nil, or reporting after a fault is already
// recorded, does nothing.
func (c *Controller) Report(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	c.err = err

	if c.cancel != nil {
		c.cancel()
	}
}

// Err returns the recorded fault, or nil if none occurred.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
