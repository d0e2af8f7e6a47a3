package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 10})
	require.NoError(t, err)
	assert.True(t, l.Enabled())
	assert.Equal(t, 20, l.burst)

	l, err = New(Config{RequestsPerSecond: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 1, l.burst, "burst never drops below one")

	l, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, l.Enabled())
}

func TestAllow_PerKeyBuckets(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 1, Burst: 3})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")

	assert.True(t, l.Allow("10.0.0.2"), "other callers have their own bucket")
	assert.Equal(t, 2, l.Len())
}

func TestAllow_Disabled(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow("client"))
	}
	assert.Zero(t, l.Len(), "disabled limiter tracks nothing")
}

func TestWait_RespectsContext(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)
	require.True(t, l.Allow("client"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx, "client"))
}

func TestTokens(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 1, Burst: 5})
	require.NoError(t, err)

	assert.Equal(t, 5.0, l.Tokens("unseen"))
	require.True(t, l.Allow("client"))
	assert.InDelta(t, 4.0, l.Tokens("client"), 0.1)
}

func TestMaxKeys_EvictsLeastRecent(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 1, Burst: 1, MaxKeys: 2})
	require.NoError(t, err)

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	require.True(t, l.Allow("c"))
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Allow("a"), "evicted caller starts with a full bucket")
	assert.False(t, l.Allow("c"))
}
