package sql

import (
	"errors"
	"fmt"
)

// InvalidFieldError is returned when a predicate or value list names a
// column the target model does not have.
type InvalidFieldError struct {
	Table string
	Field string
}

// Error returns the error string.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("sql: unknown column %q on table %q", e.Field, e.Table)
}

// IsInvalidField returns true if the error is an InvalidFieldError.
func IsInvalidField(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidFieldError
	return errors.As(err, &e)
}

// TypeMismatchError is returned when a value cannot be bound to a
// column because its Go type is incompatible with the field kind.
type TypeMismatchError struct {
	Table string
	Field string
	Kind  string
	Value any
}

// Error returns the error string.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("sql: value %v (%T) is not valid for %s.%s (%s)",
		e.Value, e.Value, e.Table, e.Field, e.Kind)
}

// IsTypeMismatch returns true if the error is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// UnsupportedOperationError is returned when the requested operation
// cannot be expressed in the active dialect. It is reported instead of
// silently emitting invalid SQL.
type UnsupportedOperationError struct {
	Dialect string
	Op      string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("sql: operation %s is not supported on dialect %q", e.Op, e.Dialect)
}

// IsUnsupportedOperation returns true if the error is an
// UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}
