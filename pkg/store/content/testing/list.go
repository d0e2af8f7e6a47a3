package testing

import (
	"testing"

	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests covers ListableStore and BatchDeleter. Stores that do not
// implement them are skipped.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("ListContent", suite.testListContent)
	t.Run("DeleteBatch", suite.testDeleteBatch)
}

func (suite *StoreTestSuite) testListContent(t *testing.T) {
	store := suite.newStore(t)
	lister, ok := store.(content.ListableStore)
	if !ok {
		t.Skip("store does not list content")
	}
	ctx := testContext()

	ids := []content.ContentID{
		content.NewContentID("", "root-doc"),
		content.NewContentID("docs", "a1"),
		content.NewContentID("docs/nested", "b2"),
	}
	for _, id := range ids {
		require.NoError(t, store.WriteContent(ctx, id, []byte(id)))
	}
	require.NoError(t, store.Delete(ctx, ids[0]))

	listed, err := lister.ListContent(ctx)
	require.NoError(t, err)
	assert.Subset(t, listed, ids[1:])
	assert.NotContains(t, listed, ids[0])
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	store := suite.newStore(t)
	batcher, ok := store.(content.BatchDeleter)
	if !ok {
		t.Skip("store has no batch delete")
	}
	ctx := testContext()

	ids := []content.ContentID{"batch/one", "batch/two", "batch/three"}
	for _, id := range ids {
		require.NoError(t, store.WriteContent(ctx, id, []byte("x")))
	}

	failures, err := batcher.DeleteBatch(ctx, append(ids[:2:2], "batch/missing"))
	require.NoError(t, err)
	assert.Empty(t, failures, "missing ids are not failures")

	for _, id := range ids[:2] {
		exists, err := store.ContentExists(ctx, id)
		require.NoError(t, err)
		assert.False(t, exists, id)
	}
	exists, err := store.ContentExists(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, exists)
}
