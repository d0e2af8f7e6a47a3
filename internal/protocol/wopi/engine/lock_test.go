package engine_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
)

func requireConflict(t *testing.T, err error, lock, reason string) {
	t.Helper()
	var conflict *engine.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, lock, conflict.Lock)
	assert.Equal(t, reason, conflict.Reason)
}

func TestLock_UnlockedFile(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)

	_, err := fx.engine.Lock(context.Background(), fx.call(t, engine.Request{Lock: "L1"}))
	require.NoError(t, err)

	stored := fx.stored(t)
	assert.Equal(t, "L1", stored.LockValue)
	assert.Equal(t, epoch.Add(30*time.Minute), stored.LockExpires)
}

func TestLock_SameValueRefreshes(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("L1", epoch.Add(time.Minute)))
	fx.clock.Advance(20 * time.Second)

	_, err := fx.engine.Lock(context.Background(), fx.call(t, engine.Request{Lock: "L1"}))
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(20*time.Second+30*time.Minute), fx.stored(t).LockExpires)
}

func TestLock_HeldByAnother(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("A", epoch.Add(time.Minute)))

	_, err := fx.engine.Lock(context.Background(), fx.call(t, engine.Request{Lock: "B"}))
	requireConflict(t, err, "A", "File already locked by A")
	assert.Equal(t, "A", fx.stored(t).LockValue)
	assert.Equal(t, int32(1), fx.metrics.lockConflicts.Load())
}

func TestLock_ExpiredLockOfAnotherIsReplaced(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("A", epoch.Add(time.Minute)))
	fx.clock.Advance(2 * time.Minute)

	_, err := fx.engine.Lock(context.Background(), fx.call(t, engine.Request{Lock: "B"}))
	require.NoError(t, err)
	assert.Equal(t, "B", fx.stored(t).LockValue)
}

func TestLock_RequiresLockValue(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)

	_, err := fx.engine.Lock(context.Background(), fx.call(t, engine.Request{}))
	var reqErr *engine.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
}

func TestGetLock(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)

	resp, err := fx.engine.GetLock(context.Background(), fx.call(t, engine.Request{}))
	require.NoError(t, err)
	require.NotNil(t, resp.Lock)
	assert.Equal(t, "", *resp.Lock)

	_, err = fx.engine.Lock(context.Background(), fx.call(t, engine.Request{Lock: "L1"}))
	require.NoError(t, err)

	resp, err = fx.engine.GetLock(context.Background(), fx.call(t, engine.Request{}))
	require.NoError(t, err)
	assert.Equal(t, "L1", *resp.Lock)
}

func TestGetLock_ClearsExpiredLock(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("L1", epoch.Add(time.Minute)))
	fx.clock.Advance(time.Minute + time.Nanosecond)

	resp, err := fx.engine.GetLock(context.Background(), fx.call(t, engine.Request{}))
	require.NoError(t, err)
	assert.Equal(t, "", *resp.Lock)

	stored := fx.stored(t)
	assert.Empty(t, stored.LockValue)
	assert.True(t, stored.LockExpires.IsZero())
}

func TestGetLock_ExactlyAtExpiryIsStillLocked(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("L1", epoch.Add(time.Minute)))
	fx.clock.Advance(time.Minute)

	resp, err := fx.engine.GetLock(context.Background(), fx.call(t, engine.Request{}))
	require.NoError(t, err)
	assert.Equal(t, "L1", *resp.Lock)
}

// lockHolderOps share the "must be locked with my value" precondition.
var lockHolderOps = []struct {
	name string
	run  func(e *engine.Engine, ctx context.Context, c *engine.Call) (*engine.Response, error)
	req  func(lock string) engine.Request
}{
	{"RefreshLock", (*engine.Engine).RefreshLock, func(l string) engine.Request { return engine.Request{Lock: l} }},
	{"Unlock", (*engine.Engine).Unlock, func(l string) engine.Request { return engine.Request{Lock: l} }},
	{"UnlockAndRelock", (*engine.Engine).UnlockAndRelock, func(l string) engine.Request { return engine.Request{Lock: "NEW", OldLock: l} }},
}

func TestLockHolderOps_Unlocked(t *testing.T) {
	for _, op := range lockHolderOps {
		t.Run(op.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.seed(t)

			_, err := op.run(fx.engine, context.Background(), fx.call(t, op.req("L1")))
			requireConflict(t, err, "", "File isn't locked")
		})
	}
}

func TestLockHolderOps_ExpiredLockIsClearedAndRejected(t *testing.T) {
	for _, op := range lockHolderOps {
		t.Run(op.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.seed(t, locked("L1", epoch.Add(time.Minute)))
			fx.clock.Advance(time.Hour)

			_, err := op.run(fx.engine, context.Background(), fx.call(t, op.req("L1")))
			requireConflict(t, err, "", "File isn't locked")
			assert.Empty(t, fx.stored(t).LockValue, "expired lock is cleared")
		})
	}
}

func TestLockHolderOps_Mismatch(t *testing.T) {
	for _, op := range lockHolderOps {
		t.Run(op.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.seed(t, locked("A", epoch.Add(time.Minute)))

			_, err := op.run(fx.engine, context.Background(), fx.call(t, op.req("B")))
			requireConflict(t, err, "A", "Lock mismatch")
			assert.Equal(t, "A", fx.stored(t).LockValue)
		})
	}
}

func TestRefreshLock_Extends(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("L1", epoch.Add(time.Minute)))
	fx.clock.Advance(30 * time.Second)

	_, err := fx.engine.RefreshLock(context.Background(), fx.call(t, engine.Request{Lock: "L1"}))
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(30*time.Second+30*time.Minute), fx.stored(t).LockExpires)
}

func TestUnlock_Releases(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("L1", epoch.Add(time.Minute)))

	_, err := fx.engine.Unlock(context.Background(), fx.call(t, engine.Request{Lock: "L1"}))
	require.NoError(t, err)

	stored := fx.stored(t)
	assert.Empty(t, stored.LockValue)
	assert.True(t, stored.LockExpires.IsZero())
}

func TestUnlockAndRelock_Swaps(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, locked("OLD", epoch.Add(time.Minute)))

	_, err := fx.engine.UnlockAndRelock(context.Background(),
		fx.call(t, engine.Request{Lock: "NEW", OldLock: "OLD"}))
	require.NoError(t, err)

	stored := fx.stored(t)
	assert.Equal(t, "NEW", stored.LockValue)
	assert.Equal(t, epoch.Add(30*time.Minute), stored.LockExpires)
}

func TestLockLifecycle(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{"lock", func() error { _, err := fx.engine.Lock(ctx, fx.call(t, engine.Request{Lock: "A"})); return err }, "A"},
		{"refresh", func() error { _, err := fx.engine.RefreshLock(ctx, fx.call(t, engine.Request{Lock: "A"})); return err }, "A"},
		{"relock", func() error {
			_, err := fx.engine.UnlockAndRelock(ctx, fx.call(t, engine.Request{Lock: "B", OldLock: "A"}))
			return err
		}, "B"},
		{"unlock", func() error { _, err := fx.engine.Unlock(ctx, fx.call(t, engine.Request{Lock: "B"})); return err }, ""},
	}

	for _, step := range steps {
		require.NoError(t, step.run(), step.name)
		stored := fx.stored(t)
		assert.Equal(t, step.want, stored.LockValue, step.name)
		assert.Equal(t, stored.LockValue == "", stored.LockExpires.IsZero(), "%s: lock pair invariant", step.name)
	}
}
