package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

func (suite *StoreTestSuite) RunLinkTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestLinkCreateAndGet)
	test.Run("TokenUniqueness", suite.TestLinkTokenUniqueness)
	test.Run("GetByToken", suite.TestLinkGetByToken)
	test.Run("Delete", suite.TestLinkDelete)
	test.Run("List", suite.TestLinkList)
	test.Run("Counters", suite.TestLinkCounters)
	test.Run("DownloadCap", suite.TestLinkDownloadCap)
	test.Run("DownloadCapConcurrent", suite.TestLinkDownloadCapConcurrent)
}

func (suite *StoreTestSuite) TestLinkCreateAndGet(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateLink(test, s, "alice", file.ID, "deadbeefdeadbeefdeadbeefdeadbeef")

	link, err := s.GetLink(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, created.Token, link.Token)
	assert.Equal(test, file.ID, link.FileID)
	assert.True(test, link.Active)

	_, err = s.GetLink(ctx, uuid.New())
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestLinkTokenUniqueness(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	first := CreateFile(test, s, "alice", "a.txt", nil, 1)
	second := CreateFile(test, s, "alice", "b.txt", nil, 1)
	CreateLink(test, s, "alice", first.ID, "sametoken")

	err := s.CreateLink(ctx, &store.SharedLink{
		ID:         uuid.New(),
		FileID:     second.ID,
		OwnerID:    "alice",
		Token:      "sametoken",
		Permission: store.PermissionView,
		ExpiresAt:  time.Now().Add(time.Hour).UTC(),
		Active:     true,
	})
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrConflict))
}

func (suite *StoreTestSuite) TestLinkGetByToken(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateLink(test, s, "alice", file.ID, "tok-active")

	link, err := s.GetLinkByToken(ctx, "tok-active")
	require.NoError(test, err)
	assert.Equal(test, created.ID, link.ID)

	_, err = s.GetLinkByToken(ctx, "tok-missing")
	assert.True(test, store.IsCode(err, store.ErrNotFound))
}

func (suite *StoreTestSuite) TestLinkDelete(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateLink(test, s, "alice", file.ID, "tok-delete")

	require.NoError(test, s.DeleteLink(ctx, created.ID))

	_, err := s.GetLink(ctx, created.ID)
	assert.True(test, store.IsCode(err, store.ErrNotFound))
	_, err = s.GetLinkByToken(ctx, "tok-delete")
	assert.True(test, store.IsCode(err, store.ErrNotFound))

	// The token is reusable once the link is gone
	CreateLink(test, s, "alice", file.ID, "tok-delete")
}

func (suite *StoreTestSuite) TestLinkList(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	CreateUser(test, s, "bob", store.PlanFree)
	mine := CreateFile(test, s, "alice", "a.txt", nil, 1)
	theirs := CreateFile(test, s, "bob", "b.txt", nil, 1)

	older := &store.SharedLink{
		ID: uuid.New(), FileID: mine.ID, OwnerID: "alice", Token: "tok-old",
		Permission: store.PermissionView, ExpiresAt: time.Now().Add(time.Hour).UTC(),
		Active: true, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(test, s.CreateLink(ctx, older))
	newer := &store.SharedLink{
		ID: uuid.New(), FileID: mine.ID, OwnerID: "alice", Token: "tok-new",
		Permission: store.PermissionView, ExpiresAt: time.Now().Add(time.Hour).UTC(),
		Active: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(test, s.CreateLink(ctx, newer))
	CreateLink(test, s, "bob", theirs.ID, "tok-bob")

	links, err := s.ListLinks(ctx, "alice")
	require.NoError(test, err)
	require.Len(test, links, 2)
	assert.Equal(test, newer.ID, links[0].ID, "newest first")
	assert.Equal(test, older.ID, links[1].ID)
}

func (suite *StoreTestSuite) TestLinkCounters(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	created := CreateLink(test, s, "alice", file.ID, "tok-counters")

	require.NoError(test, s.IncrementLinkViews(ctx, created.ID))
	require.NoError(test, s.IncrementLinkViews(ctx, created.ID))
	require.NoError(test, s.IncrementLinkDownloads(ctx, created.ID))

	link, err := s.GetLink(ctx, created.ID)
	require.NoError(test, err)
	assert.Equal(test, 2, link.Views)
	assert.Equal(test, 1, link.Downloads)
}

func (suite *StoreTestSuite) TestLinkDownloadCap(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	link := &store.SharedLink{
		ID:           uuid.New(),
		FileID:       file.ID,
		OwnerID:      "alice",
		Token:        "tok-cap",
		Permission:   store.PermissionDownload,
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		MaxDownloads: intPtr(2),
		Active:       true,
	}
	require.NoError(test, s.CreateLink(ctx, link))

	require.NoError(test, s.IncrementLinkDownloads(ctx, link.ID))
	require.NoError(test, s.IncrementLinkDownloads(ctx, link.ID))

	err := s.IncrementLinkDownloads(ctx, link.ID)
	require.Error(test, err)
	assert.True(test, store.IsCode(err, store.ErrRateLimited))

	got, err := s.GetLink(ctx, link.ID)
	require.NoError(test, err)
	assert.Equal(test, 2, got.Downloads, "the counter never passes the cap")
}

func (suite *StoreTestSuite) TestLinkDownloadCapConcurrent(test *testing.T) {
	s := suite.NewStore()
	defer s.Close()
	ctx := context.Background()

	CreateUser(test, s, "alice", store.PlanFree)
	file := CreateFile(test, s, "alice", "a.txt", nil, 1)
	link := &store.SharedLink{
		ID:           uuid.New(),
		FileID:       file.ID,
		OwnerID:      "alice",
		Token:        "tok-cap-concurrent",
		Permission:   store.PermissionDownload,
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		MaxDownloads: intPtr(5),
		Active:       true,
	}
	require.NoError(test, s.CreateLink(ctx, link))

	const attempts = 20
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.IncrementLinkDownloads(ctx, link.ID)
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for err := range results {
		if err == nil {
			granted++
			continue
		}
		assert.True(test, store.IsCode(err, store.ErrRateLimited))
	}
	assert.Equal(test, 5, granted, "exactly MaxDownloads slots are granted")

	got, err := s.GetLink(ctx, link.ID)
	require.NoError(test, err)
	assert.Equal(test, 5, got.Downloads)
}
