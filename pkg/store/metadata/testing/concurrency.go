package testing

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittowopi/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConcurrencyTests checks the conditional update contract.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("StaleRevisionConflicts", suite.testStaleRevisionConflicts)
	t.Run("ConcurrentWritersOneWins", suite.testConcurrentWritersOneWins)
}

func (suite *StoreTestSuite) testStaleRevisionConflicts(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.CreateFile(ctx, sampleFile("occ")))

	first, err := store.GetFile(ctx, "occ")
	require.NoError(t, err)
	second, err := store.GetFile(ctx, "occ")
	require.NoError(t, err)

	first.LockValue, first.LockExpires = "A", first.LastModifiedTime
	require.NoError(t, store.UpdateFile(ctx, first))

	second.LockValue, second.LockExpires = "B", second.LastModifiedTime
	err = store.UpdateFile(ctx, second)
	assert.True(t, metadata.IsConflictError(err), "got %v", err)
	assert.Equal(t, uint64(1), second.Revision, "failed update must not advance the caller's revision")

	got, err := store.GetFile(ctx, "occ")
	require.NoError(t, err)
	assert.Equal(t, "A", got.LockValue)
}

func (suite *StoreTestSuite) testConcurrentWritersOneWins(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.CreateFile(ctx, sampleFile("race")))

	const writers = 8
	copies := make([]*metadata.FileRecord, writers)
	for i := range copies {
		f, err := store.GetFile(ctx, "race")
		require.NoError(t, err)
		copies[i] = f
	}

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range copies {
		wg.Add(1)
		go func(f *metadata.FileRecord) {
			defer wg.Done()
			f.Version++
			err := store.UpdateFile(ctx, f)
			switch {
			case err == nil:
				wins.Add(1)
			case metadata.IsConflictError(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(copies[i])
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())

	got, err := store.GetFile(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision)
	assert.Equal(t, int64(2), got.Version)
}
