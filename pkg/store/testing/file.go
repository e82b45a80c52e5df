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

func (suite *StoreTestSuite) RunFileTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestFileCreateAndGet)
	test.Run("NameTripleUniqueness", suite.TestFileNameTripleUniqueness)
	test.Run("FindByName", suite.TestFileFindByName)
	test.Run("UpdateContent", suite.TestFileUpdateContent)
	test.Run("Rename", suite.TestFileRename)
	test.Run("Favorite", suite.TestFileFavorite)
	test.Run("Listings", suite.TestFileListings)
	test.Run("SumSizes", suite.TestFileSumSizes)
	test.Run("DeleteCascadesVersions", suite.TestFileDeleteCascadesVersions)
}

func (suite *StoreTestSuite) TestFileCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "report.pdf", nil, 1024)

	file, err := s.GetFile(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, "report.pdf", file.Name)
	assert.Equal(test, int64(1024), file.Size)
	assert.Nil(test, file.DeletedAt)
	assert.False(test, file.CreatedAt.IsZero())

	_, err = s.GetFile(ctx, uuid.New())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFileNameTripleUniqueness(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	folder := CreateFolder(test, s, "alice", "Documents", nil)
	CreateFile(test, s, "alice", "report.pdf", &folder.ID, 10)

	// Same triple fails with AlreadyExists (the upload path retries this
	// as a version-create)
	err := s.CreateFile(ctx, &store.File{
		ID:       uuid.New(),
		Name:     "report.pdf",
		OwnerID:  "alice",
		FolderID: &folder.ID,
	})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrAlreadyExists))

	// Different folder, different owner: both fine
	CreateFile(test, s, "alice", "report.pdf", nil, 10)
	CreateUser(test, s, "bob", store.PlanFree)
	CreateFile(test, s, "bob", "report.pdf", &folder.ID, 10)
}

func (suite *StoreTestSuite) TestFileFindByName(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "report.pdf", nil, 10)

	found, err := s.FindFileByName(ctx, "alice", nil, "report.pdf")
	require.NoError(test, err)
	assert.Equal(test, created.ID, found.ID)

	// File names match exactly, unlike folder names
	_, err = s.FindFileByName(ctx, "alice", nil, "REPORT.pdf")
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	// Trashed files are not found by name
	require.NoError(test, s.SoftDeleteFile(ctx, created.ID, time.Now().UTC()))
	_, err = s.FindFileByName(ctx, "alice", nil, "report.pdf")
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFileUpdateContent(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "report.pdf", nil, 10)

	require.NoError(test, s.UpdateFileContent(ctx, created.ID, "report-v2.pdf", "newkey", "application/pdf", 42))

	file, err := s.GetFile(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, "report-v2.pdf", file.Name)
	assert.Equal(test, "newkey", file.StoredKey)
	assert.Equal(test, "application/pdf", file.ContentType)
	assert.Equal(test, int64(42), file.Size)

	// The name index followed the rename
	found, err := s.FindFileByName(ctx, "alice", nil, "report-v2.pdf")
	require.NoError(test, err)
	assert.Equal(test, created.ID, found.ID)
	_, err = s.FindFileByName(ctx, "alice", nil, "report.pdf")
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestFileRename(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	a := CreateFile(test, s, "alice", "a.txt", nil, 1)
	CreateFile(test, s, "alice", "b.txt", nil, 1)

	err := s.RenameFile(ctx, a.ID, "b.txt")
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrAlreadyExists))

	require.NoError(test, s.RenameFile(ctx, a.ID, "c.txt"))
	file, err := s.GetFile(ctx, a.ID)
	require.NoError(test, err)
	assert.Equal(test, "c.txt", file.Name)

	// The old name is free again
	CreateFile(test, s, "alice", "a.txt", nil, 1)
}

func (suite *StoreTestSuite) TestFileFavorite(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	created := CreateFile(test, s, "alice", "a.txt", nil, 1)

	require.NoError(test, s.SetFileFavorite(ctx, created.ID, true))
	file, err := s.GetFile(ctx, created.ID)
	require.NoError(test, err)
	assert.True(test, file.Favorite)
}

func (suite *StoreTestSuite) TestFileListings(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	folder := CreateFolder(test, s, "alice", "Documents", nil)
	CreateFile(test, s, "alice", "zeta.txt", &folder.ID, 1)
	CreateFile(test, s, "alice", "Alpha.txt", &folder.ID, 1)
	root := CreateFile(test, s, "alice", "root.txt", nil, 1)
	trashed := CreateFile(test, s, "alice", "gone.txt", &folder.ID, 1)
	require.NoError(test, s.SoftDeleteFile(ctx, trashed.ID, time.Now().UTC()))

	files, err := s.ListFiles(ctx, "alice")
	require.NoError(test, err)
	require.Len(test, files, 3, "trashed files are excluded")
	assert.Equal(test, "Alpha.txt", files[0].Name)
	assert.Equal(test, "root.txt", files[1].Name)
	assert.Equal(test, "zeta.txt", files[2].Name)

	inFolder, err := s.ListFolderFiles(ctx, folder.ID)
	require.NoError(test, err)
	require.Len(test, inFolder, 2)
	assert.Equal(test, "Alpha.txt", inFolder[0].Name)
	assert.NotEqual(test, root.ID, inFolder[0].ID)
}

func (suite *StoreTestSuite) TestFileSumSizes(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	CreateFile(test, s, "alice", "a.txt", nil, 100)
	trashed := CreateFile(test, s, "alice", "b.txt", nil, 250)
	CreateFile(test, s, "bob", "c.txt", nil, 999)

	require.NoError(test, s.SoftDeleteFile(ctx, trashed.ID, time.Now().UTC()))

	// Trashed rows keep counting
	total, err := s.SumFileSizes(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, int64(350), total)
}

func (suite *StoreTestSuite) TestFileDeleteCascadesVersions(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanBusiness)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	now := time.Now().UTC()
	v1 := CreateVersion(test, s, file.ID, "alice", now.Add(-time.Hour))
	v2 := CreateVersion(test, s, file.ID, "alice", now)

	require.NoError(test, s.DeleteFile(ctx, file.ID))

	_, err := s.GetFile(ctx, file.ID)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
	_, err = s.GetVersion(ctx, v1.ID)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
	_, err = s.GetVersion(ctx, v2.ID)
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	// The name is free again
	CreateFile(test, s, "alice", "a.txt", nil, 1)
}
