// Package apperr defines the error taxonomy used across Concord's
// components: one vocabulary shared by HTTP handlers, the tool
// executor, and the consensus engine instead of a per-package set.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for both HTTP status mapping and retry/failover
// decisions.
type Kind string

const (
	// KindAuth covers missing or invalid credentials (JWT, provider API keys).
	KindAuth Kind = "auth"

	// KindValidation covers malformed requests: bad session ids, tool
	// arguments that fail schema validation, unparseable frames.
	KindValidation Kind = "validation"

	// KindCapacity covers transient overload: session busy (depth-1 queue
	// full), tool executor worker pool saturated, provider rate limited.
	KindCapacity Kind = "capacity"

	// KindProvider covers an upstream LLM provider failure not already
	// covered by auth/capacity (billing, content filter, model unavailable,
	// server error, timeout).
	KindProvider Kind = "provider"

	// KindTool covers a registered tool's own execution failure.
	KindTool Kind = "tool"

	// KindFatal covers anything that should abort a request outright:
	// panics recovered at a boundary, programmer errors.
	KindFatal Kind = "fatal"
)

// retryable reports whether retrying the same request may succeed.
func (k Kind) retryable() bool {
	switch k {
	case KindCapacity, KindProvider:
		return true
	default:
		return false
	}
}

// Error is Concord's structured error type. It wraps an underlying cause
// while attaching enough context for retry logic, failover decisions, and
// HTTP responses.
type Error struct {
	Kind      Kind
	Component string // e.g. "providers.openai", "tools.drive", "session"
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Component, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no underlying cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs an Error around cause, using cause's own message unless
// message overrides it.
func Wrap(kind Kind, component string, cause error, message string) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err (or its wrapped *Error) warrants a retry
// of the same request against the same backend.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Kind.retryable()
	}
	return false
}

// IsKind reports whether err's Kind matches k.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}
