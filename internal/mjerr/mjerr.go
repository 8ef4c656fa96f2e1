// Package mjerr defines the coordination core's error taxonomy. Every
// component returns an *Error (or wraps one with fmt.Errorf's %w) so the
// RPC layer can map failures to the right JSON-RPC code without
// re-deriving intent from error strings.
package mjerr

import "fmt"

// Kind is an abstract error category, not a concrete type per error.
type Kind string

const (
	KindBadParams       Kind = "bad_params"
	KindMethodNotFound  Kind = "method_not_found"
	KindInternal        Kind = "internal"
	KindTimeout         Kind = "timeout"
	KindFull            Kind = "full"
	KindStopped         Kind = "stopped"
	KindProofFailed     Kind = "proof_failed"
	KindMissingBlob     Kind = "missing_blob"
	KindItemNotFound    Kind = "item_not_found"
	KindUnreachable     Kind = "unreachable"
)

// Error is the coordination core's concrete error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the outbound client may retry after this
// error. Only Timeout is retryable.
func (e *Error) Retryable() bool { return e.Kind == KindTimeout }

func new_(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadParams(format string, args ...any) *Error {
	return new_(KindBadParams, fmt.Sprintf(format, args...), nil)
}

func MethodNotFound(method string) *Error {
	return new_(KindMethodNotFound, fmt.Sprintf("method not found: %s", method), nil)
}

func Internal(cause error, format string, args ...any) *Error {
	return new_(KindInternal, fmt.Sprintf(format, args...), cause)
}

func Timeout(cause error) *Error {
	return new_(KindTimeout, "request timed out", cause)
}

func Full() *Error {
	return new_(KindFull, "task request queue is full", nil)
}

func Stopped() *Error {
	return new_(KindStopped, "task is shutting down", nil)
}

func ProofFailed(batchNumber uint64, reason string) *Error {
	return new_(KindProofFailed, fmt.Sprintf("batch %d: %s", batchNumber, reason), nil)
}

func MissingBlob(batchNumber uint64) *Error {
	return new_(KindMissingBlob, fmt.Sprintf("no blobs bundle cached for batch %d", batchNumber), nil)
}

func ItemNotFound(what string) *Error {
	return new_(KindItemNotFound, fmt.Sprintf("%s not found in store", what), nil)
}

func Unreachable(format string, args ...any) *Error {
	return new_(KindUnreachable, fmt.Sprintf(format, args...), nil)
}

// As extracts an *Error from any wrapped error chain, mirroring
// errors.As without forcing every call site to declare a local var.
func As(err error) (*Error, bool) {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return target, false
}
