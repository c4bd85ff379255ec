package domain

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when an id or username resolves to no account.
var ErrUserNotFound = errors.New("user not found")

// ErrHashUnavailable signals that the bcrypt primitive itself failed.
// This is an internal fault, never attributable to caller input.
var ErrHashUnavailable = errors.New("password hashing unavailable")

// ConflictError reports a uniqueness violation on email or username.
// Field names the colliding attribute so callers can react deterministically.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already registered"
}

// ValidationError reports a malformed field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// StorageError wraps a transient storage backend failure. Operations failing
// with a StorageError are safe to retry by the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
