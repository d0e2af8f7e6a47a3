package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (file not found, stale revision, etc.) as
// opposed to infrastructure errors (network failure, disk error). The WOPI
// engine translates StoreError codes to HTTP statuses.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the file id related to the error (if applicable)
	ID string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is makes errors.Is(err, &StoreError{Code: X}) match on the code alone.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a file with the same id already exists
	ErrAlreadyExists

	// ErrConflict indicates a conditional update lost against a concurrent
	// writer: the stored revision no longer matches the caller's copy
	ErrConflict

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty id, lock value without expiry
	ErrInvalidArgument

	// ErrIOError indicates the backend failed to read or write
	ErrIOError
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrConflict:
		return "conflict"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrIOError:
		return "io_error"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// NewNotFoundError creates a not found error for id.
func NewNotFoundError(id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "file not found", ID: id}
}

// NewConflictError creates a revision conflict error for id.
func NewConflictError(id string) *StoreError {
	return &StoreError{Code: ErrConflict, Message: "revision conflict", ID: id}
}

// IsNotFoundError reports whether err is (or wraps) a not found StoreError.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrNotFound)
}

// IsConflictError reports whether err is (or wraps) a revision conflict.
func IsConflictError(err error) bool {
	return hasCode(err, ErrConflict)
}

func hasCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == code
}
