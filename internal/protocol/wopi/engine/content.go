package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// GetFile streams the file content. A file that was created empty may
// have no stored object yet; it reads as zero bytes.
func (e *Engine) GetFile(ctx context.Context, c *Call) (*Response, error) {
	f := c.File

	if c.MaxExpectedSize >= 0 && f.Size > c.MaxExpectedSize {
		return nil, &RequestError{
			Status: http.StatusPreconditionFailed,
			Reason: fmt.Sprintf("File is %d bytes, larger than X-WOPI-MaxExpectedSize %d", f.Size, c.MaxExpectedSize),
		}
	}

	body, err := e.content.ReadContent(ctx, contentID(f))
	if err != nil {
		if !errors.Is(err, content.ErrContentNotFound) || f.Size != 0 {
			logger.Warn("GETFILE failed: file=%s content=%s error=%v", f.ID, contentID(f), err)
			return nil, e.storeError(err)
		}
		body = io.NopCloser(bytes.NewReader(nil))
	}

	return &Response{
		Content:       body,
		ContentLength: f.Size,
		ItemVersion:   itemVersion(f),
	}, nil
}

// PutFile replaces the file content. The file must be locked with the
// request's value, except that an unlocked zero-byte file accepts a write
// without a lock (the file-creation path).
//
// The record is committed before the content is written, so a request that
// loses the lock decision never reaches the content store.
func (e *Engine) PutFile(ctx context.Context, c *Call) (*Response, error) {
	user := e.userID(c)
	var previous *metadata.FileRecord

	updated, err := e.mutate(ctx, "PutFile", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		current, locked, expired := f.LockState(now)
		switch {
		case expired:
			f.ClearLock()
			return true, notLocked()
		case !locked && f.Size > 0:
			return false, notLocked()
		case locked && current != c.Lock:
			return false, lockMismatch(current)
		}

		previous = f.Clone()
		f.Size = int64(len(c.Body))
		f.Version++
		f.LastModifiedTime = now
		f.LastModifiedUser = user
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.content.WriteContent(ctx, contentID(updated), c.Body); err != nil {
		logger.Warn("PUTFILE failed: file=%s content=%s error=%v", updated.ID, contentID(updated), err)
		e.revertPut(ctx, updated, previous)
		return nil, e.storeError(err)
	}

	logger.Info("PUTFILE: file=%s size=%d version=%d user=%s", updated.ID, updated.Size, updated.Version, user)
	return &Response{ItemVersion: itemVersion(updated)}, nil
}

// revertPut restores the size and version committed before a failed content
// write. It is a conditional update, so a record that has moved on since is
// left alone.
func (e *Engine) revertPut(ctx context.Context, committed, previous *metadata.FileRecord) {
	restore := committed.Clone()
	restore.Size = previous.Size
	restore.Version = previous.Version
	restore.LastModifiedTime = previous.LastModifiedTime
	restore.LastModifiedUser = previous.LastModifiedUser

	if err := e.files.UpdateFile(context.WithoutCancel(ctx), restore); err != nil {
		logger.Error("PUTFILE: could not revert file=%s to version=%d: %v", committed.ID, previous.Version, err)
	}
}

func itemVersion(f *metadata.FileRecord) string {
	return strconv.FormatInt(f.Version, 10)
}
