package proc

import (
	"bytes"
	"sync"
)

// StreamHandler accumulates process output into a buffer capped at max bytes.
// Appends beyond the cap are dropped and the truncated flag is set; once true
// it stays true. It is handed to os/exec as both stdout and stderr, so writes
// arrive from a reader goroutine separate from the one waiting on completion.
// All mutation and the callback invocation happen under one lock.
type StreamHandler struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
	onOutput  func(string)
}

// NewStreamHandler creates a handler capped at max bytes. If onOutput is
// non-nil it is invoked with the buffer's full contents after each accepted
// append, not a delta, so consumers can re-render the whole buffer each time.
func NewStreamHandler(max int, onOutput func(string)) *StreamHandler {
	return &StreamHandler{max: max, onOutput: onOutput}
}

// Write implements io.Writer. It always reports the full chunk length as
// written so the exec pipe keeps draining even after the cap is reached.
func (h *StreamHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.buf.Len() >= h.max {
		if len(p) > 0 {
			h.truncated = true
		}
		return len(p), nil
	}

	accepted := p
	if h.buf.Len()+len(p) > h.max {
		accepted = p[:h.max-h.buf.Len()]
		h.truncated = true
	}

	h.buf.Write(accepted)
	if h.onOutput != nil && len(accepted) > 0 {
		h.onOutput(h.buf.String())
	}
	return len(p), nil
}

// String returns the accumulated output.
func (h *StreamHandler) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// Len returns the number of buffered bytes.
func (h *StreamHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Len()
}

// Truncated reports whether any output was dropped.
func (h *StreamHandler) Truncated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.truncated
}
