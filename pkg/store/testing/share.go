package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

func (suite *StoreTestSuite) RunShareTests(test *testing.T) {
	test.Run("FileShareCreateAndGet", suite.TestFileShareCreateAndGet)
	test.Run("FileShareSingleActive", suite.TestFileShareSingleActive)
	test.Run("FileShareRevoke", suite.TestFileShareRevoke)
	test.Run("FileShareUpdatePermission", suite.TestFileShareUpdatePermission)
	test.Run("FileShareList", suite.TestFileShareList)
	test.Run("FolderShare", suite.TestFolderShare)
}

func (suite *StoreTestSuite) newFileShare(test *testing.T, s store.MetadataStore, fileID uuid.UUID, ownerID, withID string, permission store.Permission) *store.FileShare {
	test.Helper()

	share := &store.FileShare{
		ID:           uuid.New(),
		FileID:       fileID,
		OwnerID:      ownerID,
		SharedWithID: withID,
		Permission:   permission,
	}
	require.NoError(test, s.CreateFileShare(context.Background(), share))
	return share
}

func (suite *StoreTestSuite) TestFileShareCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := suite.newFileShare(test, s, file.ID, "alice", "bob", store.PermissionView)

	share, err := s.GetFileShare(ctx, file.ID, "bob")
	require.NoError(test, err)
	assert.Equal(test, created.ID, share.ID)
	assert.Equal(test, store.PermissionView, share.Permission)
	assert.False(test, share.Revoked)

	_, err = s.GetFileShare(ctx, file.ID, "carol")
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFileShareSingleActive(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	suite.newFileShare(test, s, file.ID, "alice", "bob", store.PermissionView)

	err := s.CreateFileShare(ctx, &store.FileShare{
		ID:           uuid.New(),
		FileID:       file.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionEdit,
	})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))
}

func (suite *StoreTestSuite) TestFileShareRevoke(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	suite.newFileShare(test, s, file.ID, "alice", "bob", store.PermissionView)

	require.NoError(test, s.RevokeFileShare(ctx, file.ID, "bob"))

	_, err := s.GetFileShare(ctx, file.ID, "bob")
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	err = s.RevokeFileShare(ctx, file.ID, "bob")
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	// Revocation frees the pair for a fresh share
	suite.newFileShare(test, s, file.ID, "alice", "bob", store.PermissionDownload)
	share, err := s.GetFileShare(ctx, file.ID, "bob")
	require.NoError(test, err)
	assert.Equal(test, store.PermissionDownload, share.Permission)
}

func (suite *StoreTestSuite) TestFileShareUpdatePermission(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	suite.newFileShare(test, s, file.ID, "alice", "bob", store.PermissionView)

	require.NoError(test, s.UpdateFileSharePermission(ctx, file.ID, "bob", store.PermissionEdit))

	share, err := s.GetFileShare(ctx, file.ID, "bob")
	require.NoError(test, err)
	assert.Equal(test, store.PermissionEdit, share.Permission)

	err = s.UpdateFileSharePermission(ctx, uuid.New(), "bob", store.PermissionEdit)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFileShareList(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	first := CreateFile(test, s, "alice", "a.txt", nil, 1)
	second := CreateFile(test, s, "alice", "b.txt", nil, 1)
	revoked := CreateFile(test, s, "alice", "c.txt", nil, 1)

	older := &store.FileShare{
		ID: uuid.New(), FileID: first.ID, OwnerID: "alice", SharedWithID: "bob",
		Permission: store.PermissionView, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(test, s.CreateFileShare(ctx, older))
	newer := &store.FileShare{
		ID: uuid.New(), FileID: second.ID, OwnerID: "alice", SharedWithID: "bob",
		Permission: store.PermissionView, CreatedAt: time.Now().UTC(),
	}
	require.NoError(test, s.CreateFileShare(ctx, newer))
	suite.newFileShare(test, s, revoked.ID, "alice", "bob", store.PermissionView)
	require.NoError(test, s.RevokeFileShare(ctx, revoked.ID, "bob"))

	shares, err := s.ListFileSharesWith(ctx, "bob")
	require.NoError(test, err)
	require.Len(test, shares, 2, "revoked shares are hidden")
	assert.Equal(test, newer.ID, shares[0].ID, "newest first")
	assert.Equal(test, older.ID, shares[1].ID)
}

func (suite *StoreTestSuite) TestFolderShare(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	folder := CreateFolder(test, s, "alice", "Documents", nil)

	share := &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     folder.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionDownload,
	}
	require.NoError(test, s.CreateFolderShare(ctx, share))

	err := s.CreateFolderShare(ctx, &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     folder.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionView,
	})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))

	got, err := s.GetFolderShare(ctx, folder.ID, "bob")
	require.NoError(test, err)
	assert.Equal(test, share.ID, got.ID)

	shares, err := s.ListFolderSharesWith(ctx, "bob")
	require.NoError(test, err)
	require.Len(test, shares, 1)

	require.NoError(test, s.RevokeFolderShare(ctx, folder.ID, "bob"))
	_, err = s.GetFolderShare(ctx, folder.ID, "bob")
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	shares, err = s.ListFolderSharesWith(ctx, "bob")
	require.NoError(test, err)
	assert.Empty(test, shares)
}
