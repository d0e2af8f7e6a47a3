package engine

import (
	"context"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// requireLock checks that f is locked with want at now. An expired lock is
// cleared on f and reported as not locked; cleared tells the caller to
// persist that.
func requireLock(f *metadata.FileRecord, now time.Time, want string) (cleared bool, err error) {
	current, locked, expired := f.LockState(now)
	switch {
	case expired:
		f.ClearLock()
		return true, notLocked()
	case !locked:
		return false, notLocked()
	case current != want:
		return false, lockMismatch(current)
	}
	return false, nil
}

// Lock locks an unlocked file, or refreshes a lock already held with the
// same value.
func (e *Engine) Lock(ctx context.Context, c *Call) (*Response, error) {
	if c.Lock == "" {
		return nil, badRequest(reasonNoLock)
	}

	_, err := e.mutate(ctx, "Lock", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		current, locked, _ := f.LockState(now)
		if locked && current != c.Lock {
			return false, &ConflictError{Lock: current, Reason: "File already locked by " + current}
		}
		f.SetLock(c.Lock, now.Add(e.lockDuration))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("LOCK: file=%s lock=%q", c.File.ID, c.Lock)
	return &Response{}, nil
}

// GetLock reports the current lock value, or "" when unlocked. An expired
// lock is cleared.
func (e *Engine) GetLock(ctx context.Context, c *Call) (*Response, error) {
	var value string

	_, err := e.mutate(ctx, "GetLock", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		current, _, expired := f.LockState(now)
		value = current
		if expired {
			f.ClearLock()
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return &Response{Lock: &value}, nil
}

// RefreshLock extends a lock held with the request's value.
func (e *Engine) RefreshLock(ctx context.Context, c *Call) (*Response, error) {
	_, err := e.mutate(ctx, "RefreshLock", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		if cleared, err := requireLock(f, now, c.Lock); err != nil {
			return cleared, err
		}
		f.SetLock(c.Lock, now.Add(e.lockDuration))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Response{}, nil
}

// Unlock releases a lock held with the request's value.
func (e *Engine) Unlock(ctx context.Context, c *Call) (*Response, error) {
	_, err := e.mutate(ctx, "Unlock", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		if cleared, err := requireLock(f, now, c.Lock); err != nil {
			return cleared, err
		}
		f.ClearLock()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("UNLOCK: file=%s lock=%q", c.File.ID, c.Lock)
	return &Response{}, nil
}

// UnlockAndRelock swaps a lock held with OldLock for Lock.
func (e *Engine) UnlockAndRelock(ctx context.Context, c *Call) (*Response, error) {
	if c.Lock == "" {
		return nil, badRequest(reasonNoLock)
	}

	_, err := e.mutate(ctx, "UnlockAndRelock", c.File, func(f *metadata.FileRecord, now time.Time) (bool, error) {
		if cleared, err := requireLock(f, now, c.OldLock); err != nil {
			return cleared, err
		}
		f.SetLock(c.Lock, now.Add(e.lockDuration))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("RELOCK: file=%s old=%q new=%q", c.File.ID, c.OldLock, c.Lock)
	return &Response{}, nil
}
