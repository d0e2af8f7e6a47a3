package content

import "errors"

var (
	// ErrContentNotFound indicates the requested object does not exist.
	//
	// Callers should check with errors.Is since implementations wrap it
	// with the content id.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContentID indicates an id that cannot be mapped to the
	// backend (empty, or escaping the store root).
	ErrInvalidContentID = errors.New("invalid content ID")

	// ErrTooLarge indicates the object exceeds a configured limit.
	ErrTooLarge = errors.New("content too large")
)
