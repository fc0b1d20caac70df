// Package abort provides a cooperative cancellation token for command execution.
package abort

import "sync"

// Controller is an idempotent cancellation token. The first Abort call fires
// every registered listener synchronously; later calls are no-ops. Listeners
// registered after the controller has aborted fire immediately.
type Controller struct {
	mu        sync.Mutex
	done      chan struct{}
	aborted   bool
	nextID    uint64
	listeners map[uint64]func()
}

// New creates a controller in the not-aborted state.
func New() *Controller {
	return &Controller{
		done:      make(chan struct{}),
		listeners: make(map[uint64]func()),
	}
}

// Abort transitions the controller to the aborted state and invokes every
// registered listener in the caller's goroutine. A second call is a no-op.
func (c *Controller) Abort() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	close(c.done)

	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listeners = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Aborted reports whether Abort has been called.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Done returns a channel closed when the controller aborts.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// OnAbort registers a listener. If the controller has already aborted, the
// listener fires immediately in the caller's goroutine. The returned function
// removes the listener; removal after firing is a no-op.
func (c *Controller) OnAbort(fn func()) (remove func()) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}
