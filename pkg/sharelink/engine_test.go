package sharelink

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobMemory "github.com/skyvault/skyvault/pkg/blob/memory"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/store/memory"
	storetesting "github.com/skyvault/skyvault/pkg/store/testing"
)

type linkFixture struct {
	engine *Engine
	store  store.MetadataStore
	blobs  *blobMemory.MemoryBlobStore
	clock  time.Time
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()

	s := memory.New()
	t.Cleanup(func() { s.Close() })

	fixture := &linkFixture{
		store: s,
		blobs: blobMemory.New(),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fixture.engine = NewEngine(s, fixture.blobs)
	fixture.engine.now = func() time.Time { return fixture.clock }

	storetesting.CreateUser(t, s, "alice", store.PlanFree)
	return fixture
}

func (f *linkFixture) seedFile(t *testing.T, name, content string) *store.File {
	t.Helper()

	file := storetesting.CreateFile(t, f.store, "alice", name, nil, int64(len(content)))
	require.NoError(t, f.blobs.Put(context.Background(), file.StoredKey, strings.NewReader(content), "text/plain"))
	return file
}

func (f *linkFixture) expiry(d time.Duration) time.Time {
	return f.clock.Add(d)
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()

	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func intPtr(v int) *int {
	return &v
}

func TestCreate(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionDownload,
		ExpiresAt:  f.expiry(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, link.Token, 2*tokenBytes, "hex-encoded random token")
	assert.True(t, link.Active)
	assert.Empty(t, link.PasswordHash)

	got, err := f.store.GetLinkByToken(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)
	file := f.seedFile(t, "a.txt", "hello")

	// Only the owner can publish a link
	_, err := f.engine.Create(ctx, "bob", file.ID, CreateOptions{ExpiresAt: f.expiry(time.Hour)})
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	// An expiry is mandatory and must lie in the future
	_, err = f.engine.Create(ctx, "alice", file.ID, CreateOptions{})
	assert.True(t, store.IsCode(err, store.ErrConflict))
	_, err = f.engine.Create(ctx, "alice", file.ID, CreateOptions{ExpiresAt: f.expiry(-time.Hour)})
	assert.True(t, store.IsCode(err, store.ErrConflict))

	// A download cap of zero makes no sense
	_, err = f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		ExpiresAt:    f.expiry(time.Hour),
		MaxDownloads: intPtr(0),
	})
	assert.True(t, store.IsCode(err, store.ErrConflict))

	// Trashed files cannot be linked
	require.NoError(t, f.store.SoftDeleteFile(ctx, file.ID, f.clock))
	_, err = f.engine.Create(ctx, "alice", file.ID, CreateOptions{ExpiresAt: f.expiry(time.Hour)})
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestValidateOrder(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionView,
		ExpiresAt:  f.expiry(time.Hour),
		Password:   "s3cret",
	})
	require.NoError(t, err)

	// Unknown token
	_, err = f.engine.Validate(ctx, "nope", "s3cret")
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	// Missing password
	_, err = f.engine.Validate(ctx, link.Token, "")
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrInvalidCredential))
	assert.Contains(t, err.Error(), "required")

	// Wrong password
	_, err = f.engine.Validate(ctx, link.Token, "guess")
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrInvalidCredential))
	assert.Contains(t, err.Error(), "not valid")

	// Correct password
	got, err := f.engine.Validate(ctx, link.Token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	// Expiry outranks the password checks
	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.engine.Validate(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrExpired))
}

func TestPublicInfoCountsViews(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionView,
		ExpiresAt:  f.expiry(time.Hour),
	})
	require.NoError(t, err)

	info, err := f.engine.PublicInfo(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.FileName)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, 1, info.Views)
	assert.False(t, info.RequiresPassword)

	info, err = f.engine.PublicInfo(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Views)

	got, err := f.store.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)
	assert.Equal(t, 0, got.Downloads)
}

func TestPublicInfoSkipsPasswordCheck(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionDownload,
		ExpiresAt:  f.expiry(time.Hour),
		Password:   "hunter2",
	})
	require.NoError(t, err)

	// Visitors see the landing page metadata before entering a password.
	info, err := f.engine.PublicInfo(ctx, link.Token)
	require.NoError(t, err)
	assert.True(t, info.RequiresPassword)

	// Expiry still applies.
	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.engine.PublicInfo(ctx, link.Token)
	assert.True(t, store.IsCode(err, store.ErrExpired))
}

func TestStreamAllowedAtViewLevel(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionView,
		ExpiresAt:  f.expiry(time.Hour),
	})
	require.NoError(t, err)

	content, got, err := f.engine.Stream(ctx, link.Token, "")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
	assert.Equal(t, "hello", readAll(t, content))

	// Streaming counts as a view, never as a download
	stored, err := f.store.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Views)
	assert.Equal(t, 0, stored.Downloads)

	// A View-level link refuses downloads
	_, _, err = f.engine.Download(ctx, link.Token, "")
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestDownload(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionDownload,
		ExpiresAt:  f.expiry(time.Hour),
	})
	require.NoError(t, err)

	content, _, err := f.engine.Download(ctx, link.Token, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, content))

	stored, err := f.store.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Downloads)
}

func TestDownloadCap(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission:   store.PermissionDownload,
		ExpiresAt:    f.expiry(time.Hour),
		MaxDownloads: intPtr(2),
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		content, _, err := f.engine.Download(ctx, link.Token, "")
		require.NoError(t, err)
		content.Close()
	}

	_, _, err = f.engine.Download(ctx, link.Token, "")
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrRateLimited))
}

func TestLinkToTrashedFile(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionDownload,
		ExpiresAt:  f.expiry(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, f.store.SoftDeleteFile(ctx, file.ID, f.clock))

	// A link to a trashed file reads as not found everywhere
	_, err = f.engine.Validate(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	_, err = f.engine.PublicInfo(ctx, link.Token)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	_, _, err = f.engine.Download(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestTrashedFileOutranksPasswordChecks(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionDownload,
		ExpiresAt:  f.expiry(time.Hour),
		Password:   "hunter2",
	})
	require.NoError(t, err)

	require.NoError(t, f.store.SoftDeleteFile(ctx, file.ID, f.clock))

	// A dead link answers NotFound, never PasswordRequired, so probing a
	// token without the password reveals nothing
	_, _, err = f.engine.Download(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	_, _, err = f.engine.Stream(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	// Same once expired
	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.engine.Validate(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestLinkDelete(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)
	file := f.seedFile(t, "a.txt", "hello")

	link, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
		Permission: store.PermissionView,
		ExpiresAt:  f.expiry(time.Hour),
	})
	require.NoError(t, err)

	err = f.engine.Delete(ctx, "bob", link.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	require.NoError(t, f.engine.Delete(ctx, "alice", link.ID))
	_, err = f.engine.Validate(ctx, link.Token, "")
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	err = f.engine.Delete(ctx, "alice", uuid.New())
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestLinkList(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	file := f.seedFile(t, "a.txt", "hello")

	for i := 0; i < 3; i++ {
		_, err := f.engine.Create(ctx, "alice", file.ID, CreateOptions{
			Permission: store.PermissionView,
			ExpiresAt:  f.expiry(time.Hour),
		})
		require.NoError(t, err)
	}

	links, err := f.engine.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, links, 3)
}
