package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so callers can render it or decide on a retry
type ErrorKind string

const (
	ErrToolNotFound        ErrorKind = "tool_not_found"
	ErrTimeout             ErrorKind = "timeout"
	ErrNotFound            ErrorKind = "not_found"
	ErrConflict            ErrorKind = "conflict"
	ErrPermissionDenied    ErrorKind = "permission_denied"
	ErrNetworkUnavailable  ErrorKind = "network_unavailable"
	ErrParse               ErrorKind = "parse_error"
	ErrPartialBatchFailure ErrorKind = "partial_batch_failure"
	ErrInvalidRequest      ErrorKind = "invalid_request"
	ErrCancelled           ErrorKind = "cancelled"
	ErrNotReady            ErrorKind = "not_ready"
	ErrUnknown             ErrorKind = "unknown"
)

// Error lets a bare ErrorKind be used as a sentinel with errors.Is
func (k ErrorKind) Error() string {
	return string(k)
}

// OpError is the structured failure returned by every component
type OpError struct {
	Kind       ErrorKind
	Op         string
	Paths      []string
	Diagnostic string
	ExitCode   int
	Err        error
}

func (e *OpError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if len(e.Paths) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Paths, ", "))
	}
	if e.Diagnostic != "" {
		b.WriteString(": ")
		b.WriteString(e.Diagnostic)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches a target ErrorKind
func (e *OpError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// NewOpError builds an OpError
func NewOpError(kind ErrorKind, op, diagnostic string, paths ...string) *OpError {
	return &OpError{Kind: kind, Op: op, Diagnostic: diagnostic, Paths: paths}
}

// KindOf extracts the ErrorKind from err, or ErrUnknown
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return ErrUnknown
}

// DiagnosticOf returns the raw diagnostic text attached to err, if any
func DiagnosticOf(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Diagnostic
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsRetryable reports whether a caller may reasonably try again.
// Nothing in this module retries on its own.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrTimeout, ErrNetworkUnavailable:
		return true
	default:
		return false
	}
}
