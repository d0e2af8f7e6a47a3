package testing

import (
	"io"
	"testing"

	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests runs overwrite and isolation tests.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("EmptyContent", suite.testEmptyContent)
	t.Run("ContainersAreSeparate", suite.testContainersAreSeparate)
	t.Run("CallerBufferReuse", suite.testCallerBufferReuse)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "o1")

	require.NoError(t, store.WriteContent(ctx, id, []byte("a much longer first version")))
	require.NoError(t, store.WriteContent(ctx, id, []byte("short")))

	assert.Equal(t, "short", readAll(t, store, id))
}

func (suite *StoreTestSuite) testEmptyContent(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "empty")

	require.NoError(t, store.WriteContent(ctx, id, nil))

	size, err := store.GetContentSize(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Empty(t, readAll(t, store, id))
}

func (suite *StoreTestSuite) testContainersAreSeparate(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.WriteContent(ctx, content.NewContentID("team-a", "same"), []byte("A")))
	require.NoError(t, store.WriteContent(ctx, content.NewContentID("team-b", "same"), []byte("B")))

	assert.Equal(t, "A", readAll(t, store, content.NewContentID("team-a", "same")))
	assert.Equal(t, "B", readAll(t, store, content.NewContentID("team-b", "same")))
}

func (suite *StoreTestSuite) testCallerBufferReuse(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "buf")

	buf := []byte("original")
	require.NoError(t, store.WriteContent(ctx, id, buf))
	copy(buf, "mutated!")

	assert.Equal(t, "original", readAll(t, store, id))
}

func readAll(t *testing.T, store content.ContentStore, id content.ContentID) string {
	t.Helper()
	rc, err := store.ReadContent(testContext(), id)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}
