package testing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

func (suite *StoreTestSuite) RunFolderTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestFolderCreateAndGet)
	test.Run("SiblingNameConflict", suite.TestFolderSiblingNameConflict)
	test.Run("SameNameDifferentParent", suite.TestFolderSameNameDifferentParent)
	test.Run("Rename", suite.TestFolderRename)
	test.Run("Favorite", suite.TestFolderFavorite)
	test.Run("ListChildren", suite.TestFolderListChildren)
}

func (suite *StoreTestSuite) TestFolderCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFolder(test, s, "alice", "Documents", nil)

	folder, err := s.GetFolder(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, "Documents", folder.Name)
	assert.Equal(test, "alice", folder.OwnerID)
	assert.Nil(test, folder.ParentID)

	_, err = s.GetFolder(ctx, uuid.New())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFolderSiblingNameConflict(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateFolder(test, s, "alice", "Documents", nil)

	// Sibling names are unique case-insensitively
	err := s.CreateFolder(ctx, &store.Folder{
		ID:      uuid.New(),
		Name:    "DOCUMENTS",
		OwnerID: "alice",
	})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))

	// A different owner may reuse the name
	CreateUser(test, s, "bob", store.PlanFree)
	CreateFolder(test, s, "bob", "Documents", nil)
}

func (suite *StoreTestSuite) TestFolderSameNameDifferentParent(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	CreateUser(test, s, "alice", store.PlanFree)
	parentA := CreateFolder(test, s, "alice", "A", nil)
	parentB := CreateFolder(test, s, "alice", "B", nil)

	CreateFolder(test, s, "alice", "Projects", &parentA.ID)
	CreateFolder(test, s, "alice", "Projects", &parentB.ID)
}

func (suite *StoreTestSuite) TestFolderRename(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	docs := CreateFolder(test, s, "alice", "Documents", nil)
	CreateFolder(test, s, "alice", "Pictures", nil)

	// Renaming onto a sibling name fails
	err := s.RenameFolder(ctx, docs.ID, "pictures")
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))

	// Case-only rename of the same folder is allowed
	require.NoError(test, s.RenameFolder(ctx, docs.ID, "documents"))

	require.NoError(test, s.RenameFolder(ctx, docs.ID, "Archive"))
	folder, err := s.GetFolder(ctx, docs.ID)
	require.NoError(test, err)
	assert.Equal(test, "Archive", folder.Name)

	// The old name becomes available again
	CreateFolder(test, s, "alice", "Documents", nil)
}

func (suite *StoreTestSuite) TestFolderFavorite(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	docs := CreateFolder(test, s, "alice", "Documents", nil)

	require.NoError(test, s.SetFolderFavorite(ctx, docs.ID, true))
	folder, err := s.GetFolder(ctx, docs.ID)
	require.NoError(test, err)
	assert.True(test, folder.Favorite)

	require.NoError(test, s.SetFolderFavorite(ctx, docs.ID, false))
	folder, err = s.GetFolder(ctx, docs.ID)
	require.NoError(test, err)
	assert.False(test, folder.Favorite)
}

func (suite *StoreTestSuite) TestFolderListChildren(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	root := CreateFolder(test, s, "alice", "Root", nil)
	CreateFolder(test, s, "alice", "zeta", &root.ID)
	CreateFolder(test, s, "alice", "Alpha", &root.ID)
	CreateFolder(test, s, "alice", "midway", &root.ID)

	// Another owner's tree stays invisible
	CreateUser(test, s, "bob", store.PlanFree)
	CreateFolder(test, s, "bob", "Other", nil)

	children, err := s.ListFolderChildren(ctx, "alice", &root.ID)
	require.NoError(test, err)
	require.Len(test, children, 3)
	assert.Equal(test, "Alpha", children[0].Name)
	assert.Equal(test, "midway", children[1].Name)
	assert.Equal(test, "zeta", children[2].Name)

	roots, err := s.ListFolderChildren(ctx, "alice", nil)
	require.NoError(test, err)
	require.Len(test, roots, 1)
	assert.Equal(test, "Root", roots[0].Name)

	all, err := s.ListFolders(ctx, "alice")
	require.NoError(test, err)
	assert.Len(test, all, 4)
}
