// Package permission classifies candidate shell commands into allow, deny,
// or ask verdicts and manages the approval flow for ask results.
package permission

import (
	"errors"
	"strings"
)

// Action is the verdict for a permission check.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// ParseAction parses a configured action string. Unknown values map to
// ActionAsk so a typo in a config file never silently allows a command.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow
	case "deny":
		return ActionDeny
	default:
		return ActionAsk
	}
}

// PermissionType represents the type of permission being checked.
type PermissionType string

const (
	PermBash PermissionType = "bash"
)

// Replies a user can give to a pending permission request.
const (
	ReplyOnce   = "once"
	ReplyAlways = "always"
	ReplyReject = "reject"
)

// Request represents a request for permission.
type Request struct {
	ID        string         `json:"id"`
	Type      PermissionType `json:"type"`
	Patterns  []string       `json:"patterns,omitempty"`
	Command   string         `json:"command,omitempty"`
	SessionID string         `json:"sessionID"`
	CallID    string         `json:"callID,omitempty"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response represents a user's response to a permission request.
type Response struct {
	RequestID string `json:"requestID"`
	Reply     string `json:"reply"` // "once" | "always" | "reject"
}

// RejectedError is returned when permission is denied.
type RejectedError struct {
	SessionID string
	CallID    string
	Pattern   string
	Message   string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// IsRejectedError checks if an error is a permission rejection.
func IsRejectedError(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
