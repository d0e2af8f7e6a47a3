package engine

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the target file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrTransient is returned when a backend failed in a way a retry by
	// the WOPI client may fix: storage I/O, or a revision conflict that
	// survived the engine's own retry.
	ErrTransient = errors.New("transient backend failure")
)

// ConflictError is a lock conflict (409). Lock is echoed in X-WOPI-Lock and
// may be empty; Reason goes to X-WOPI-LockFailureReason.
type ConflictError struct {
	Lock   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lock conflict: %s", e.Reason)
}

// RequestError is a request the engine refuses to run (400, 412, 501, ...).
type RequestError struct {
	Status int
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Reason)
}

const (
	reasonNotLocked     = "File isn't locked"
	reasonLockMismatch  = "Lock mismatch"
	reasonBothTargets   = "Both RELATIVE_TARGET and SUGGESTED_TARGET were present"
	reasonNoTarget      = "PutRelativeFile mode was not provided in the request"
	reasonNoRequestName = "X-WOPI-RequestedName header wasn't included in request"
	reasonNoLock        = "X-WOPI-Lock header wasn't included in request"
)

func notLocked() *ConflictError {
	return &ConflictError{Reason: reasonNotLocked}
}

func lockMismatch(current string) *ConflictError {
	return &ConflictError{Lock: current, Reason: reasonLockMismatch}
}

func badRequest(reason string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Reason: reason}
}
