package quill

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an update or delete matched zero rows.
// It reports a state, not a connection failure: callers that treat a
// missing row as acceptable can test for it with errors.Is.
var ErrNotFound = errors.New("quill: record not found")

// NotFoundError carries the table and primary key an update or delete
// failed to match.
type NotFoundError struct {
	Table string
	Key   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("quill: %s not found (pk=%v)", e.Table, e.Key)
	}
	return fmt.Sprintf("quill: %s not found", e.Table)
}

// Is reports whether the target matches ErrNotFound, so
// errors.Is(err, ErrNotFound) holds for every NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error reports a zero-row update or
// delete.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConnectionError wraps any failure surfaced by the underlying
// connection: network errors, constraint violations, SQL syntax
// rejections. The engine never retries; retry policy belongs to the
// caller since statement idempotence cannot be assumed.
type ConnectionError struct {
	Op  string // operation that failed, e.g. "insert users"
	Err error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("quill: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError returns true if the error wraps a connection
// failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}

// ValidationError reports a field value rejected before any SQL was
// issued, e.g. a required field missing on create.
type ValidationError struct {
	Table string
	Field string
	Err   error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("quill: validation failed for %s.%s: %v", e.Table, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}
