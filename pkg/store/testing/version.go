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

func (suite *StoreTestSuite) RunVersionTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestVersionCreateAndGet)
	test.Run("List", suite.TestVersionList)
	test.Run("SoftDelete", suite.TestVersionSoftDelete)
	test.Run("UpdateDescription", suite.TestVersionUpdateDescription)
}

func (suite *StoreTestSuite) TestVersionCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanBusiness)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateVersion(test, s, file.ID, "alice", time.Now().UTC())

	version, err := s.GetVersion(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, file.ID, version.FileID)
	assert.Equal(test, "alice", version.CreatedBy)
	assert.Nil(test, version.DeletedAt)

	_, err = s.GetVersion(ctx, uuid.New())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestVersionList(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanBusiness)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	other := CreateFile(test, s, "alice", "b.txt", nil, 1)
	now := time.Now().UTC()

	oldest := CreateVersion(test, s, file.ID, "alice", now.Add(-2*time.Hour))
	newest := CreateVersion(test, s, file.ID, "alice", now)
	hidden := CreateVersion(test, s, file.ID, "alice", now.Add(-time.Hour))
	CreateVersion(test, s, other.ID, "alice", now)
	require.NoError(test, s.SoftDeleteVersion(ctx, hidden.ID, now))

	versions, err := s.ListVersions(ctx, file.ID)
	require.NoError(test, err)
	require.Len(test, versions, 2, "soft-deleted versions are excluded")
	assert.Equal(test, newest.ID, versions[0].ID, "newest first")
	assert.Equal(test, oldest.ID, versions[1].ID)

	all, err := s.ListAllVersions(ctx, file.ID)
	require.NoError(test, err)
	assert.Len(test, all, 3, "the purge path sees soft-deleted rows too")
}

func (suite *StoreTestSuite) TestVersionSoftDelete(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanBusiness)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateVersion(test, s, file.ID, "alice", time.Now().UTC())

	require.NoError(test, s.SoftDeleteVersion(ctx, created.ID, time.Now().UTC()))

	// The row stays readable by id
	version, err := s.GetVersion(ctx, created.ID)
	require.NoError(test, err)
	assert.NotNil(test, version.DeletedAt)

	err = s.SoftDeleteVersion(ctx, uuid.New(), time.Now().UTC())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestVersionUpdateDescription(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanBusiness)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateVersion(test, s, file.ID, "alice", time.Now().UTC())

	require.NoError(test, s.UpdateVersionDescription(ctx, created.ID, "before the quarterly rewrite"))

	version, err := s.GetVersion(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, "before the quarterly rewrite", version.Description)
}
