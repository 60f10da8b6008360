package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable failure category carried on every
// error response. Clients branch on the kind; the message is for humans.
type ErrorKind string

const (
	KindToolNotFound      ErrorKind = "ToolNotFound"
	KindDuplicateTool     ErrorKind = "DuplicateTool"
	KindInvalidArguments  ErrorKind = "InvalidArguments"
	KindInvalidPrecond    ErrorKind = "InvalidPrecondition"
	KindConcurrentOp      ErrorKind = "ConcurrentOperationConflict"
	KindToolUnavailable   ErrorKind = "ToolUnavailable"
	KindProcessFailure    ErrorKind = "ProcessFailure"
	KindTimeout           ErrorKind = "Timeout"
	KindPathNotFound      ErrorKind = "PathNotFound"
	KindPathTraversal     ErrorKind = "PathTraversal"
	KindInternal          ErrorKind = "Internal"
)

// CallError is a typed failure produced at or below the dispatch boundary.
// Every error leaving the dispatcher is one of these; raw internal errors are
// wrapped as KindInternal rather than leaking uncategorized.
type CallError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	cause   error
}

// NewError creates a CallError with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...any) *CallError {
	return &CallError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a CallError that preserves cause for errors.Is/As chains.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *CallError {
	return &CallError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetail attaches a detail field and returns the same error for chaining.
func (e *CallError) WithDetail(key string, value any) *CallError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.cause
}

// KindOf extracts the ErrorKind from err, unwrapping as needed.
// Unrecognized errors map to KindInternal.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// AsCallError converts any error into a CallError, wrapping unrecognized
// errors as KindInternal so no raw failure reaches a client uncategorized.
func AsCallError(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return WrapError(KindInternal, err, "%v", err)
}
