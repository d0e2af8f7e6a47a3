package testing

import (
	"testing"
	"time"

	"github.com/marmos91/dittowopi/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFileTests executes create/get/update/list tests.
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testCreateAndGet)
	t.Run("CreateDuplicate", suite.testCreateDuplicate)
	t.Run("CreateInvalid", suite.testCreateInvalid)
	t.Run("GetNotFound", suite.testGetNotFound)
	t.Run("Update", suite.testUpdate)
	t.Run("UpdateNotFound", suite.testUpdateNotFound)
	t.Run("ReturnedCopyIsPrivate", suite.testReturnedCopyIsPrivate)
	t.Run("LockRoundTrip", suite.testLockRoundTrip)
	t.Run("ListFiles", suite.testListFiles)
}

func (suite *StoreTestSuite) testCreateAndGet(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	file := sampleFile("a1")
	file.UserInfo = `{"theme":"dark"}`
	require.NoError(t, store.CreateFile(ctx, file))
	assert.Equal(t, uint64(1), file.Revision)

	got, err := store.GetFile(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "report.docx", got.BaseFileName)
	assert.Equal(t, "docs", got.Container)
	assert.Equal(t, int64(11), got.Size)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, `{"theme":"dark"}`, got.UserInfo)
	assert.Equal(t, uint64(1), got.Revision)
	assert.True(t, file.LastModifiedTime.Equal(got.LastModifiedTime))
	assert.Empty(t, got.LockValue)
	assert.True(t, got.LockExpires.IsZero())
}

func (suite *StoreTestSuite) testCreateDuplicate(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.CreateFile(ctx, sampleFile("dup")))

	err := store.CreateFile(ctx, sampleFile("dup"))
	require.Error(t, err)

	var storeErr *metadata.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, metadata.ErrAlreadyExists, storeErr.Code)
}

func (suite *StoreTestSuite) testCreateInvalid(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	halfLocked := sampleFile("bad")
	halfLocked.LockValue = "lock-without-expiry"

	err := store.CreateFile(ctx, halfLocked)
	var storeErr *metadata.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, metadata.ErrInvalidArgument, storeErr.Code)

	err = store.CreateFile(ctx, sampleFile(""))
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, metadata.ErrInvalidArgument, storeErr.Code)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.GetFile(testContext(), "missing")
	assert.True(t, metadata.IsNotFoundError(err), "got %v", err)
}

func (suite *StoreTestSuite) testUpdate(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.CreateFile(ctx, sampleFile("u1")))

	file, err := store.GetFile(ctx, "u1")
	require.NoError(t, err)

	file.BaseFileName = "renamed.docx"
	file.Version++
	file.Size = 42
	require.NoError(t, store.UpdateFile(ctx, file))
	assert.Equal(t, uint64(2), file.Revision)

	got, err := store.GetFile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "renamed.docx", got.BaseFileName)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, uint64(2), got.Revision)
}

func (suite *StoreTestSuite) testUpdateNotFound(t *testing.T) {
	store := suite.newStore(t)

	file := sampleFile("ghost")
	file.Revision = 1
	err := store.UpdateFile(testContext(), file)
	assert.True(t, metadata.IsNotFoundError(err), "got %v", err)
}

func (suite *StoreTestSuite) testReturnedCopyIsPrivate(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	original := sampleFile("p1")
	require.NoError(t, store.CreateFile(ctx, original))
	original.BaseFileName = "mutated-after-create.docx"

	first, err := store.GetFile(ctx, "p1")
	require.NoError(t, err)
	first.BaseFileName = "mutated-after-get.docx"

	second, err := store.GetFile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "report.docx", second.BaseFileName)
}

func (suite *StoreTestSuite) testLockRoundTrip(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	require.NoError(t, store.CreateFile(ctx, sampleFile("l1")))

	file, err := store.GetFile(ctx, "l1")
	require.NoError(t, err)

	expires := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	file.SetLock("lock-token", expires)
	require.NoError(t, store.UpdateFile(ctx, file))

	got, err := store.GetFile(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "lock-token", got.LockValue)
	assert.True(t, expires.Equal(got.LockExpires))

	got.ClearLock()
	require.NoError(t, store.UpdateFile(ctx, got))

	cleared, err := store.GetFile(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, cleared.LockValue)
	assert.True(t, cleared.LockExpires.IsZero())
}

func (suite *StoreTestSuite) testListFiles(t *testing.T) {
	store := suite.newStore(t)
	ctx := testContext()

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.CreateFile(ctx, sampleFile(id)))
	}

	files, err = store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, "b", files[1].ID)
	assert.Equal(t, "c", files[2].ID)
}
