package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/store/memory"
	storetesting "github.com/skyvault/skyvault/pkg/store/testing"
)

func newResolverFixture(t *testing.T) (*Resolver, store.MetadataStore) {
	t.Helper()

	s := memory.New()
	t.Cleanup(func() { s.Close() })
	storetesting.CreateUser(t, s, "alice", store.PlanFree)
	storetesting.CreateUser(t, s, "bob", store.PlanFree)
	return NewResolver(s), s
}

func TestResolveFileOwner(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	file := storetesting.CreateFile(t, s, "alice", "a.txt", nil, 1)

	grant, err := resolver.ResolveFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.True(t, grant.Owner)
	assert.Equal(t, SourceOwner, grant.Source)
	assert.True(t, grant.AllowsDownload())
	assert.True(t, grant.AllowsEdit())
}

func TestResolveFileNoGrant(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	file := storetesting.CreateFile(t, s, "alice", "a.txt", nil, 1)

	_, err := resolver.ResolveFile(ctx, "bob", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	_, err = resolver.ResolveFile(ctx, "bob", uuid.New())
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestResolveFileDirectShare(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	file := storetesting.CreateFile(t, s, "alice", "a.txt", nil, 1)

	require.NoError(t, s.CreateFileShare(ctx, &store.FileShare{
		ID:           uuid.New(),
		FileID:       file.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionDownload,
	}))

	grant, err := resolver.ResolveFile(ctx, "bob", file.ID)
	require.NoError(t, err)
	assert.False(t, grant.Owner)
	assert.Equal(t, SourceFileShare, grant.Source)
	assert.True(t, grant.AllowsDownload())
	assert.False(t, grant.AllowsEdit())

	// Revoking the share drops the grant
	require.NoError(t, s.RevokeFileShare(ctx, file.ID, "bob"))
	_, err = resolver.ResolveFile(ctx, "bob", file.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestResolveFileThroughFolderShare(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	folder := storetesting.CreateFolder(t, s, "alice", "Documents", nil)
	inFolder := storetesting.CreateFile(t, s, "alice", "a.txt", &folder.ID, 1)
	atRoot := storetesting.CreateFile(t, s, "alice", "b.txt", nil, 1)

	require.NoError(t, s.CreateFolderShare(ctx, &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     folder.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionView,
	}))

	grant, err := resolver.ResolveFile(ctx, "bob", inFolder.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceFolderShare, grant.Source)
	assert.Equal(t, store.PermissionView, grant.Permission)
	assert.False(t, grant.AllowsDownload())

	// The folder share does not cover files outside the folder
	_, err = resolver.ResolveFile(ctx, "bob", atRoot.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestResolveFileFolderShareIsSingleLevel(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	parent := storetesting.CreateFolder(t, s, "alice", "Documents", nil)
	child := storetesting.CreateFolder(t, s, "alice", "Reports", &parent.ID)
	nested := storetesting.CreateFile(t, s, "alice", "deep.txt", &child.ID, 1)

	require.NoError(t, s.CreateFolderShare(ctx, &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     parent.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionEdit,
	}))

	// Files one level down in a subfolder are not reachable
	_, err := resolver.ResolveFile(ctx, "bob", nested.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	// The subfolder itself is one level down and resolves
	grant, err := resolver.ResolveFolder(ctx, "bob", child.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceFolderShare, grant.Source)

	// A grandchild folder is not reachable
	grandchild := storetesting.CreateFolder(t, s, "alice", "Q3", &child.ID)
	_, err = resolver.ResolveFolder(ctx, "bob", grandchild.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestResolveFolderThroughParentShare(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	parent := storetesting.CreateFolder(t, s, "alice", "Documents", nil)
	child := storetesting.CreateFolder(t, s, "alice", "Reports", &parent.ID)
	other := storetesting.CreateFolder(t, s, "alice", "Private", nil)

	require.NoError(t, s.CreateFolderShare(ctx, &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     parent.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionDownload,
	}))

	grant, err := resolver.ResolveFolder(ctx, "bob", child.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceFolderShare, grant.Source)
	assert.True(t, grant.AllowsDownload())
	assert.False(t, grant.AllowsEdit())

	// A root folder outside the shared tree stays out of reach
	_, err = resolver.ResolveFolder(ctx, "bob", other.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestResolveFileTrashed(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	file := storetesting.CreateFile(t, s, "alice", "a.txt", nil, 1)

	require.NoError(t, s.CreateFileShare(ctx, &store.FileShare{
		ID:           uuid.New(),
		FileID:       file.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionEdit,
	}))
	require.NoError(t, s.SoftDeleteFile(ctx, file.ID, time.Now().UTC()))

	// The owner still resolves a trashed file
	grant, err := resolver.ResolveFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.True(t, grant.Owner)

	// Shares do not reach into the trash
	_, err = resolver.ResolveFile(ctx, "bob", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestResolveFolder(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	folder := storetesting.CreateFolder(t, s, "alice", "Documents", nil)

	grant, err := resolver.ResolveFolder(ctx, "alice", folder.ID)
	require.NoError(t, err)
	assert.True(t, grant.Owner)

	_, err = resolver.ResolveFolder(ctx, "bob", folder.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	require.NoError(t, s.CreateFolderShare(ctx, &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     folder.ID,
		OwnerID:      "alice",
		SharedWithID: "bob",
		Permission:   store.PermissionDownload,
	}))

	grant, err = resolver.ResolveFolder(ctx, "bob", folder.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceFolderShare, grant.Source)
	assert.True(t, grant.AllowsDownload())
}

func TestRequireOwner(t *testing.T) {
	resolver, s := newResolverFixture(t)
	ctx := context.Background()
	file := storetesting.CreateFile(t, s, "alice", "a.txt", nil, 1)
	folder := storetesting.CreateFolder(t, s, "alice", "Documents", nil)

	got, err := resolver.RequireFileOwner(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)

	_, err = resolver.RequireFileOwner(ctx, "bob", file.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	_, err = resolver.RequireFolderOwner(ctx, "bob", folder.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}
