package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

func (suite *StoreTestSuite) RunTrashTests(test *testing.T) {
	test.Run("SoftDelete", suite.TestTrashSoftDelete)
	test.Run("SoftDeleteFreesName", suite.TestTrashSoftDeleteFreesName)
	test.Run("Restore", suite.TestTrashRestore)
	test.Run("RestoreNameTaken", suite.TestTrashRestoreNameTaken)
	test.Run("ListTrashed", suite.TestTrashListTrashed)
	test.Run("ListTrashedBefore", suite.TestTrashListTrashedBefore)
}

func (suite *StoreTestSuite) TestTrashSoftDelete(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "a.txt", nil, 1)
	require.NoError(test, s.SetFileFavorite(ctx, created.ID, true))

	deletedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(test, s.SoftDeleteFile(ctx, created.ID, deletedAt))

	file, err := s.GetFile(ctx, created.ID)
	require.NoError(test, err)
	require.NotNil(test, file.DeletedAt)
	assert.True(test, file.DeletedAt.Equal(deletedAt))
	assert.False(test, file.Favorite, "trashing clears the favorite flag")

	// Deleting a trashed file again is NotFound
	err = s.SoftDeleteFile(ctx, created.ID, time.Now().UTC())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestTrashSoftDeleteFreesName(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "a.txt", nil, 1)
	require.NoError(test, s.SoftDeleteFile(ctx, created.ID, time.Now().UTC()))

	// The identity triple is free for a new upload
	CreateFile(test, s, "alice", "a.txt", nil, 2)
}

func (suite *StoreTestSuite) TestTrashRestore(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "a.txt", nil, 1)

	// Restoring a file that is not trashed is NotFound
	err := s.RestoreFile(ctx, created.ID)
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	require.NoError(test, s.SoftDeleteFile(ctx, created.ID, time.Now().UTC()))
	require.NoError(test, s.RestoreFile(ctx, created.ID))

	file, err := s.GetFile(ctx, created.ID)
	require.NoError(test, err)
	assert.Nil(test, file.DeletedAt)

	// Restored files are findable by name again
	found, err := s.FindFileByName(ctx, "alice", nil, "a.txt")
	require.NoError(test, err)
	assert.Equal(test, created.ID, found.ID)
}

func (suite *StoreTestSuite) TestTrashRestoreNameTaken(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "a.txt", nil, 1)
	require.NoError(test, s.SoftDeleteFile(ctx, created.ID, time.Now().UTC()))

	// A new file takes the freed triple while the original sits in trash
	CreateFile(test, s, "alice", "a.txt", nil, 2)

	err := s.RestoreFile(ctx, created.ID)
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))
}

func (suite *StoreTestSuite) TestTrashListTrashed(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	now := time.Now().UTC()

	old := CreateFile(test, s, "alice", "old.txt", nil, 1)
	recent := CreateFile(test, s, "alice", "recent.txt", nil, 1)
	CreateFile(test, s, "alice", "kept.txt", nil, 1)
	other := CreateFile(test, s, "bob", "other.txt", nil, 1)
	require.NoError(test, s.SoftDeleteFile(ctx, old.ID, now.Add(-48*time.Hour)))
	require.NoError(test, s.SoftDeleteFile(ctx, recent.ID, now))
	require.NoError(test, s.SoftDeleteFile(ctx, other.ID, now))

	all, err := s.ListTrashed(ctx, "alice", time.Time{})
	require.NoError(test, err)
	require.Len(test, all, 2, "only alice's trash")
	assert.Equal(test, recent.ID, all[0].ID, "newest deletion first")
	assert.Equal(test, old.ID, all[1].ID)

	filtered, err := s.ListTrashed(ctx, "alice", now.Add(-time.Hour))
	require.NoError(test, err)
	require.Len(test, filtered, 1)
	assert.Equal(test, recent.ID, filtered[0].ID)
}

func (suite *StoreTestSuite) TestTrashListTrashedBefore(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	now := time.Now().UTC()

	expired := CreateFile(test, s, "alice", "expired.txt", nil, 1)
	fresh := CreateFile(test, s, "alice", "fresh.txt", nil, 1)
	require.NoError(test, s.SoftDeleteFile(ctx, expired.ID, now.Add(-31*24*time.Hour)))
	require.NoError(test, s.SoftDeleteFile(ctx, fresh.ID, now))

	due, err := s.ListTrashedBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(test, err)
	require.Len(test, due, 1)
	assert.Equal(test, expired.ID, due[0].ID)
}
