package testing

import (
	"io"
	"testing"

	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests runs read/size/exists/delete tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("ReadMissing", suite.testReadMissing)
	t.Run("WriteThenRead", suite.testWriteThenRead)
	t.Run("Exists", suite.testExists)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteMissing", suite.testDeleteMissing)
}

func (suite *StoreTestSuite) testReadMissing(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	_, err := store.ReadContent(ctx, "docs/missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)

	_, err = store.GetContentSize(ctx, "docs/missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testWriteThenRead(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "a1")

	require.NoError(t, store.WriteContent(ctx, id, []byte("hello world")))

	rc, err := store.ReadContent(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))

	size, err := store.GetContentSize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), size)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "e1")

	exists, err := store.ContentExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteContent(ctx, id, []byte("x")))

	exists, err = store.ContentExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()
	id := content.NewContentID("docs", "d1")

	require.NoError(t, store.WriteContent(ctx, id, []byte("bye")))
	require.NoError(t, store.Delete(ctx, id))

	exists, err := store.ContentExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.newStore(t)
	assert.NoError(t, store.Delete(testContext(), content.NewContentID("docs", "never")))
}
