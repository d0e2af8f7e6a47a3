package metadata

import (
	"context"
)

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore persists FileRecords for the WOPI engine.
//
// The store manages file metadata and lock state but does NOT manage file
// content. Content lives in a content store, addressed by the record's
// Container and ID.
//
// Concurrency Model:
//
// Every record carries a store-managed Revision. Writers follow a
// read-decide-write cycle: GetFile, mutate the returned copy, UpdateFile.
// UpdateFile is a conditional write that fails with ErrConflict when another
// writer got there first; the caller re-reads and decides again. The store
// never hands out shared pointers, so a caller's copy is private.
//
// Design Principles:
//   - Consistent error handling: business errors are *StoreError
//   - Context-aware: all operations respect cancellation and timeouts
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type MetadataStore interface {
	// GetFile returns a copy of the record.
	//
	// Returns:
	//   - error: ErrNotFound if no record has this id, or context errors
	GetFile(ctx context.Context, id string) (*FileRecord, error)

	// CreateFile inserts a new record and sets file.Revision to 1.
	//
	// Returns:
	//   - error: ErrAlreadyExists if the id is taken, ErrInvalidArgument if
	//     the record violates its invariants, or context errors
	CreateFile(ctx context.Context, file *FileRecord) error

	// UpdateFile replaces the stored record if its revision still equals
	// file.Revision. On success file.Revision is advanced to the new value.
	//
	// Returns:
	//   - error: ErrNotFound if the record vanished, ErrConflict if the
	//     revision moved, ErrInvalidArgument for invariant violations
	UpdateFile(ctx context.Context, file *FileRecord) error

	// ListFiles returns all records ordered by id.
	ListFiles(ctx context.Context) ([]*FileRecord, error)

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
