package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

func (suite *StoreTestSuite) RunUserTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestUserCreateAndGet)
	test.Run("DuplicateID", suite.TestUserDuplicateID)
	test.Run("GetMissing", suite.TestUserGetMissing)
	test.Run("UpdatePlan", suite.TestUserUpdatePlan)
}

func (suite *StoreTestSuite) TestUserCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanPremium)

	user, err := s.GetUser(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, "alice", user.ID)
	assert.Equal(test, store.PlanPremium, user.Plan)
	assert.False(test, user.CreatedAt.IsZero(), "CreatedAt should be stamped")
}

func (suite *StoreTestSuite) TestUserDuplicateID(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)

	err := s.CreateUser(ctx, &store.User{ID: "alice", Plan: store.PlanBusiness})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))

	// The original record is untouched
	user, err := s.GetUser(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, store.PlanFree, user.Plan)
}

func (suite *StoreTestSuite) TestUserGetMissing(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	_, err := s.GetUser(context.Background(), "nobody")
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestUserUpdatePlan(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)

	require.NoError(test, s.UpdateUserPlan(ctx, "alice", store.PlanBusiness))

	user, err := s.GetUser(ctx, "alice")
	require.NoError(test, err)
	assert.Equal(test, store.PlanBusiness, user.Plan)

	err = s.UpdateUserPlan(ctx, "nobody", store.PlanFree)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}
