// Package cmderr defines the classified error type for command execution.
package cmderr

import (
	"errors"
	"fmt"
)

// Kind classifies a command execution failure.
type Kind string

const (
	Timeout          Kind = "TIMEOUT"
	PermissionDenied Kind = "PERMISSION_DENIED"
	CommandNotFound  Kind = "COMMAND_NOT_FOUND"
	DangerousCommand Kind = "DANGEROUS_COMMAND"
	ProcessKilled    Kind = "PROCESS_KILLED"
	InvalidWorkdir   Kind = "INVALID_WORKDIR"
	ShellNotFound    Kind = "SHELL_NOT_FOUND"
	Unknown          Kind = "UNKNOWN"
)

// retryableKinds are the kinds considered transient.
var retryableKinds = map[Kind]bool{
	Timeout: true,
	Unknown: true,
}

// Retryable reports whether a kind is eligible for automatic re-attempt.
func Retryable(kind Kind) bool {
	return retryableKinds[kind]
}

// Error is a classified command execution failure. It carries the offending
// command string and kind-specific metadata such as the timeout value or the
// denying pattern.
type Error struct {
	Kind    Kind
	Command string
	Message string
	Meta    map[string]any
	cause   error
}

// New creates a classified error.
func New(kind Kind, command, message string) *Error {
	return &Error{Kind: kind, Command: command, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, command, format string, args ...any) *Error {
	return &Error{Kind: kind, Command: command, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping an underlying cause.
func Wrap(kind Kind, command string, cause error) *Error {
	return &Error{Kind: kind, Command: command, Message: cause.Error(), cause: cause}
}

// WithMeta attaches kind-specific metadata and returns the error.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the Kind from an error. Unclassified non-nil errors report
// Unknown; nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return Unknown
}

// Is reports whether err is a classified error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
