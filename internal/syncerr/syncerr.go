// Package syncerr defines the typed failure taxonomy shared by the sync
// and backfill pipelines. Library functions return these errors; the HTTP
// boundary maps them to status codes and user-safe messages.
package syncerr

import (
	"errors"
	"fmt"
)

// Code identifies the failure class, which determines propagation policy.
type Code string

const (
	// CodeInvalidArgument marks missing or malformed caller input. Never
	// retried, surfaced immediately.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeUnauthenticated marks an expired or invalid credential.
	CodeUnauthenticated Code = "unauthenticated"
	// CodePermissionDenied marks a quota or scope rejection.
	CodePermissionDenied Code = "permission_denied"
	// CodeRemoteService marks a transient provider failure. Batch-local
	// skip for metadata fetch, run-fatal for the initial enumeration.
	CodeRemoteService Code = "remote_service"
	// CodeStorage marks a backing-store failure.
	CodeStorage Code = "storage"
	// CodeEmbeddingProvider marks a per-item embedding failure, recorded
	// on the item and never fatal to a backfill page.
	CodeEmbeddingProvider Code = "embedding_provider"
	// CodeInternal is the fallback classification for unrecognized errors.
	CodeInternal Code = "internal"
)

// Error carries a failure code, a message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error wrapping an underlying cause.
func Wrap(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the failure code of err, walking the wrap chain.
// Unrecognized errors classify as CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
