// Package content defines the binary object storage used for document bytes.
//
// Content is addressed by a ContentID derived from a file record's container
// and id. The metadata store never sees content; the WOPI engine coordinates
// the two.
package content

import (
	"context"
	"io"
	"path"
	"strings"
)

// ContentID addresses one document body, e.g. "docs/4c1f6a0e-...".
type ContentID string

// NewContentID builds the id for a file in container. An empty container
// places the object at the root.
func NewContentID(container, fileID string) ContentID {
	container = strings.Trim(container, "/")
	if container == "" {
		return ContentID(fileID)
	}
	return ContentID(path.Join(container, fileID))
}

// ContentStore stores document bodies.
//
// Implementations must be safe for concurrent use. Writes replace the whole
// object: WOPI PutFile always sends the complete document.
type ContentStore interface {
	// ReadContent opens the object for reading. The caller closes it.
	//
	// Returns ErrContentNotFound when the object does not exist.
	ReadContent(ctx context.Context, id ContentID) (io.ReadCloser, error)

	// GetContentSize returns the object size in bytes.
	GetContentSize(ctx context.Context, id ContentID) (uint64, error)

	// ContentExists reports whether the object exists.
	ContentExists(ctx context.Context, id ContentID) (bool, error)

	// WriteContent replaces the object with data.
	WriteContent(ctx context.Context, id ContentID, data []byte) error

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, id ContentID) error

	// Close releases resources held by the store.
	Close() error
}

// ListableStore is a ContentStore that can enumerate its objects. The
// garbage collector needs it to find content no file record points at.
type ListableStore interface {
	ContentStore

	// ListContent returns the id of every stored object, in no particular
	// order.
	ListContent(ctx context.Context) ([]ContentID, error)
}

// BatchDeleter is implemented by stores that remove many objects per
// round trip.
type BatchDeleter interface {
	// DeleteBatch removes ids and returns the ones that failed. The error
	// is reserved for failures that stopped the batch as a whole.
	DeleteBatch(ctx context.Context, ids []ContentID) (map[ContentID]error, error)
}
