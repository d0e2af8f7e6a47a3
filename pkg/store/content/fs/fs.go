// Package fs implements filesystem-based content storage.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittowopi/pkg/store/content"
)

// FSContentStore implements content.ContentStore using the local filesystem.
//
// Each ContentID maps to a file under basePath. Writes go to a temporary
// file in the same directory that is renamed over the target, so readers
// see either the old or the new document, never a partial one.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates the base directory (0755) if needed.
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath maps id under basePath, rejecting ids that would escape it.
func (r *FSContentStore) getFilePath(id content.ContentID) (string, error) {
	clean := filepath.Clean("/" + string(id))
	if id == "" || clean == "/" {
		return "", content.ErrInvalidContentID
	}
	p := filepath.Join(r.basePath, clean)
	if !strings.HasPrefix(p, filepath.Clean(r.basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", content.ErrInvalidContentID, id)
	}
	return p, nil
}

func (r *FSContentStore) ReadContent(ctx context.Context, id content.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := r.getFilePath(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

func (r *FSContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p, err := r.getFilePath(id)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	return uint64(info.Size()), nil
}

func (r *FSContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if _, err := r.GetContentSize(ctx, id); err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *FSContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}
	return nil
}

func (r *FSContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// ListContent walks basePath. Leftover upload temp files are skipped.
func (r *FSContentStore) ListContent(ctx context.Context) ([]content.ContentID, error) {
	var ids []content.ContentID

	err := filepath.WalkDir(r.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(r.basePath, p)
		if err != nil {
			return err
		}
		ids = append(ids, content.ContentID(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return ids, nil
}

// Close is a no-op; no descriptors are held between calls.
func (r *FSContentStore) Close() error {
	return nil
}
