package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.MetadataStore using in-memory storage.
//
// It is suitable for:
//   - Testing and development environments
//   - Demo deployments where documents are registered at startup
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu), making the
// store safe for concurrent access from multiple goroutines. Records are
// copied in and out so callers never share state with the map.
type MemoryMetadataStore struct {
	// mu protects files.
	mu sync.RWMutex

	// files maps file id to the stored record.
	files map[string]*metadata.FileRecord
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		files: make(map[string]*metadata.FileRecord),
	}
}

// NewMemoryMetadataStoreWithDefaults is kept for symmetry with the other
// backends' constructors.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore()
}

// GetFile implements metadata.MetadataStore.
func (store *MemoryMetadataStore) GetFile(ctx context.Context, id string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	file, ok := store.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError(id)
	}
	return file.Clone(), nil
}

// CreateFile implements metadata.MetadataStore.
func (store *MemoryMetadataStore) CreateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := file.Validate(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if _, exists := store.files[file.ID]; exists {
		return &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: "file already exists",
			ID:      file.ID,
		}
	}

	file.Revision = 1
	store.files[file.ID] = file.Clone()
	return nil
}

// UpdateFile implements metadata.MetadataStore.
func (store *MemoryMetadataStore) UpdateFile(ctx context.Context, file *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := file.Validate(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	current, ok := store.files[file.ID]
	if !ok {
		return metadata.NewNotFoundError(file.ID)
	}
	if current.Revision != file.Revision {
		return metadata.NewConflictError(file.ID)
	}

	file.Revision++
	store.files[file.ID] = file.Clone()
	return nil
}

// ListFiles implements metadata.MetadataStore.
func (store *MemoryMetadataStore) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	files := make([]*metadata.FileRecord, 0, len(store.files))
	for _, f := range store.files {
		files = append(files, f.Clone())
	}
	store.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

// Close implements metadata.MetadataStore. It is a no-op.
func (store *MemoryMetadataStore) Close() error {
	return nil
}
