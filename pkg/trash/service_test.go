package trash

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobMemory "github.com/skyvault/skyvault/pkg/blob/memory"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/store/memory"
	storetesting "github.com/skyvault/skyvault/pkg/store/testing"
)

type trashFixture struct {
	service *Service
	store   store.MetadataStore
	blobs   *blobMemory.MemoryBlobStore
	clock   time.Time
}

func newTrashFixture(t *testing.T) *trashFixture {
	t.Helper()

	s := memory.New()
	t.Cleanup(func() { s.Close() })

	fixture := &trashFixture{
		store: s,
		blobs: blobMemory.New(),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fixture.service = NewService(s, fixture.blobs, DefaultRetention)
	fixture.service.now = func() time.Time { return fixture.clock }

	storetesting.CreateUser(t, s, "alice", store.PlanFree)
	return fixture
}

// advance moves the fixture clock forward.
func (f *trashFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// seedFile creates a file row with its blob in place.
func (f *trashFixture) seedFile(t *testing.T, name, content string) *store.File {
	t.Helper()

	file := storetesting.CreateFile(t, f.store, "alice", name, nil, int64(len(content)))
	require.NoError(t, f.blobs.Put(context.Background(), file.StoredKey, strings.NewReader(content), "text/plain"))
	return file
}

func TestSoftDelete(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))

	got, err := f.store.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(f.clock))

	// The blob stays until purge
	exists, err := f.blobs.Exists(ctx, file.StoredKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// Double delete is NotFound
	err = f.service.SoftDelete(ctx, "alice", file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestSoftDeleteOwnerOnly(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)
	file := f.seedFile(t, "a.txt", "hello")

	err := f.service.SoftDelete(ctx, "bob", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestRestoreWithinRetention(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))
	f.advance(29 * 24 * time.Hour)
	require.NoError(t, f.service.Restore(ctx, "alice", file.ID))

	got, err := f.store.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
}

func TestRestoreAfterRetention(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))
	f.advance(31 * 24 * time.Hour)

	err := f.service.Restore(ctx, "alice", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrExpired))
}

func TestPermanentlyDelete(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")
	version := storetesting.CreateVersion(t, f.store, file.ID, "alice", f.clock)
	require.NoError(t, f.blobs.Put(ctx, version.StoredKey, strings.NewReader("old"), "text/plain"))

	// Only trashed files can be purged
	err := f.service.PermanentlyDelete(ctx, "alice", file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))
	require.NoError(t, f.service.PermanentlyDelete(ctx, "alice", file.ID))

	_, err = f.store.GetFile(ctx, file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	// Both the live blob and the version blob are gone
	exists, err := f.blobs.Exists(ctx, file.StoredKey)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.blobs.Exists(ctx, version.StoredKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmptyTrash(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	first := f.seedFile(t, "a.txt", "a")
	second := f.seedFile(t, "b.txt", "b")
	kept := f.seedFile(t, "c.txt", "c")
	other := storetesting.CreateFile(t, f.store, "bob", "d.txt", nil, 1)

	require.NoError(t, f.service.SoftDelete(ctx, "alice", first.ID))
	require.NoError(t, f.service.SoftDelete(ctx, "alice", second.ID))
	require.NoError(t, f.service.SoftDelete(ctx, "bob", other.ID))

	purged, err := f.service.EmptyTrash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	// Untrashed files and other users' trash are untouched
	_, err = f.store.GetFile(ctx, kept.ID)
	require.NoError(t, err)
	_, err = f.store.GetFile(ctx, other.ID)
	require.NoError(t, err)
}

func TestTrashList(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))
	f.advance(10 * 24 * time.Hour)

	items, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, file.ID, item.File.ID)
	assert.True(t, item.PermanentDeleteDate.Equal(file.DeletedAt.Add(DefaultRetention)))
	assert.Equal(t, 20, item.DaysRemaining)
}

func TestTrashListPartialDayRoundsUp(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", file.ID))
	f.advance(29*24*time.Hour + 12*time.Hour)

	items, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].DaysRemaining, "half a day left still counts as one day")

	f.advance(12 * time.Hour)
	items, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].DaysRemaining)
}

func TestTrashListHidesExpired(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	expired := f.seedFile(t, "a.txt", "hello")
	fresh := f.seedFile(t, "b.txt", "hello")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", expired.ID))
	f.advance(31 * 24 * time.Hour)
	require.NoError(t, f.service.SoftDelete(ctx, "alice", fresh.ID))

	// The expired file drops out of the listing before the purge job
	// gets to it
	items, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fresh.ID, items[0].File.ID)

	_, err = f.store.GetFile(ctx, expired.ID)
	require.NoError(t, err, "the row itself waits for the purge")
}

func TestExpiringSoon(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	dueSoon := f.seedFile(t, "soon.txt", "a")
	recent := f.seedFile(t, "recent.txt", "b")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", dueSoon.ID))
	f.advance(29 * 24 * time.Hour)
	require.NoError(t, f.service.SoftDelete(ctx, "alice", recent.ID))

	items, err := f.service.ExpiringSoon(ctx, "alice", DefaultReminderWindow)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, dueSoon.ID, items[0].File.ID)
}

func TestPurgeExpired(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	expired := f.seedFile(t, "expired.txt", "a")
	fresh := f.seedFile(t, "fresh.txt", "b")

	require.NoError(t, f.service.SoftDelete(ctx, "alice", expired.ID))
	f.advance(31 * 24 * time.Hour)
	require.NoError(t, f.service.SoftDelete(ctx, "alice", fresh.ID))

	purged, failed, err := f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 0, failed)

	_, err = f.store.GetFile(ctx, expired.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	exists, err := f.blobs.Exists(ctx, expired.StoredKey)
	require.NoError(t, err)
	assert.False(t, exists)

	// The fresh one is still in the trash
	got, err := f.store.GetFile(ctx, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestCollectorRunNow(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	expired := f.seedFile(t, "expired.txt", "a")
	require.NoError(t, f.service.SoftDelete(ctx, "alice", expired.ID))
	f.advance(31 * 24 * time.Hour)

	collector := NewCollector(f.service, CollectorConfig{})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PurgedCount)
	assert.Equal(t, 0, stats.FailedCount)
	assert.Contains(t, stats.Summary(), "purged=1")
}

func TestCollectorStartStop(t *testing.T) {
	f := newTrashFixture(t)

	collector := NewCollector(f.service, CollectorConfig{
		Enabled:  true,
		Interval: time.Hour,
	})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))
}
