package permission

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/codeforge-ai/codeforge/internal/event"
)

// Checker owns the approval flow for ask verdicts. Approvals are scoped to
// a session: an "always" reply persists the asked patterns for that session
// so repeated commands stop prompting.
type Checker struct {
	mu       sync.RWMutex
	patterns map[string]map[string]bool // sessionID -> pattern -> approved
	pending  map[string]chan Response   // requestID -> response channel
}

// NewChecker creates a new permission checker.
func NewChecker() *Checker {
	return &Checker{
		patterns: make(map[string]map[string]bool),
		pending:  make(map[string]chan Response),
	}
}

// Check resolves a verdict for a request: allow passes, deny fails with a
// RejectedError, ask blocks on user approval.
func (c *Checker) Check(ctx context.Context, req Request, action Action) error {
	switch action {
	case ActionAllow:
		return nil
	case ActionDeny:
		return &RejectedError{
			SessionID: req.SessionID,
			CallID:    req.CallID,
			Message:   "permission denied by policy",
		}
	case ActionAsk:
		return c.Ask(ctx, req)
	}
	return nil
}

// Ask publishes a permission.required event and blocks until a reply
// arrives via Respond or the context is cancelled. A request whose patterns
// were all previously approved for the session returns immediately.
func (c *Checker) Ask(ctx context.Context, req Request) error {
	if len(req.Patterns) > 0 && c.allApproved(req.SessionID, req.Patterns) {
		return nil
	}

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = respChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: event.PermissionRequiredData{
			ID:        req.ID,
			SessionID: req.SessionID,
			Patterns:  req.Patterns,
			Command:   req.Command,
			Title:     req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respChan:
		switch resp.Reply {
		case ReplyOnce:
			return nil
		case ReplyAlways:
			c.approve(req.SessionID, req.Patterns)
			return nil
		default:
			// Unknown replies reject rather than grant.
			return &RejectedError{
				SessionID: req.SessionID,
				CallID:    req.CallID,
				Message:   "permission rejected by user",
			}
		}
	}
}

// Respond delivers a user's reply for a pending request. Replies to unknown
// or already-resolved requests are dropped.
func (c *Checker) Respond(requestID, reply string) {
	c.mu.RLock()
	ch, ok := c.pending[requestID]
	c.mu.RUnlock()

	if ok {
		select {
		case ch <- Response{RequestID: requestID, Reply: reply}:
		default:
		}
	}

	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{
			ID:      requestID,
			Reply:   reply,
			Granted: reply != ReplyReject,
		},
	})
}

// Pending returns the ids of requests currently waiting for a reply.
func (c *Checker) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

func (c *Checker) allApproved(sessionID string, patterns []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.patterns[sessionID]
	if !ok {
		return false
	}
	for _, p := range patterns {
		if !session[p] {
			return false
		}
	}
	return true
}

func (c *Checker) approve(sessionID string, patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.patterns[sessionID] == nil {
		c.patterns[sessionID] = make(map[string]bool)
	}
	for _, p := range patterns {
		c.patterns[sessionID][p] = true
	}
}

// ApprovePattern persists a pattern approval for a session without a
// prompt.
func (c *Checker) ApprovePattern(sessionID, pattern string) {
	c.approve(sessionID, []string{pattern})
}

// IsPatternApproved reports whether a pattern was approved for the session.
func (c *Checker) IsPatternApproved(sessionID, pattern string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if session, ok := c.patterns[sessionID]; ok {
		return session[pattern]
	}
	return false
}

// ClearSession drops all approvals for a session. Pending requests are
// unaffected.
func (c *Checker) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.patterns, sessionID)
}
