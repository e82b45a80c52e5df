package files

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/access"
	"github.com/skyvault/skyvault/pkg/blob"
	blobMemory "github.com/skyvault/skyvault/pkg/blob/memory"
	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/store/memory"
	storetesting "github.com/skyvault/skyvault/pkg/store/testing"
	"github.com/skyvault/skyvault/pkg/versions"
)

type serviceFixture struct {
	service *Service
	store   store.MetadataStore
	blobs   *blobMemory.MemoryBlobStore
}

// newServiceFixture wires a files service over memory backends with tiny
// quota limits: Free 100 bytes, Premium 1000 bytes, Business unlimited
// with versioning.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	s := memory.New()
	t.Cleanup(func() { s.Close() })

	free := int64(100)
	premium := int64(1000)
	catalog := quota.Catalog{
		store.PlanFree:     {StorageLimitBytes: &free},
		store.PlanPremium:  {StorageLimitBytes: &premium},
		store.PlanBusiness: {SupportsVersioning: true},
	}

	blobs := blobMemory.New()
	resolver := access.NewResolver(s)
	ledger := quota.NewLedger(s, catalog)
	versionEngine := versions.NewEngine(s, blobs, ledger)

	return &serviceFixture{
		service: NewService(s, blobs, resolver, ledger, versionEngine),
		store:   s,
		blobs:   blobs,
	}
}

func upload(name, content string) versions.Upload {
	return versions.Upload{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	}
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()

	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestUpload(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", file.Name)
	assert.Equal(t, int64(5), file.Size)

	content, got, err := f.service.Download(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
	assert.Equal(t, "hello", readAll(t, content))
}

func TestUploadSizeMismatch(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	_, err := f.service.Upload(ctx, "alice", nil, versions.Upload{
		Name:        "a.txt",
		ContentType: "text/plain",
		Size:        99,
		Content:     strings.NewReader("hello"),
	})
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrConflict))
}

func TestUploadQuota(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	_, err := f.service.Upload(ctx, "alice", nil, upload("big.bin", strings.Repeat("x", 101)))
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrQuotaExceeded))

	// Nothing was stored
	files, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, 0, f.blobs.Len())
}

// failingBlobStore refuses writes, standing in for an aborted transfer.
type failingBlobStore struct {
	blob.BlobStore
}

func (f *failingBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return errors.New("connection reset")
}

func TestUploadFailedTransfer(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	f.service.blobs = &failingBlobStore{BlobStore: f.blobs}
	_, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.Error(t, err)

	// The aborted transfer leaves no metadata behind
	listed, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.store.FindFileByName(ctx, "alice", nil, "a.txt")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestUploadIntoFolder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	folder, err := f.service.CreateFolder(ctx, "alice", nil, "Documents")
	require.NoError(t, err)

	file, err := f.service.Upload(ctx, "alice", &folder.ID, upload("a.txt", "hi"))
	require.NoError(t, err)
	require.NotNil(t, file.FolderID)
	assert.Equal(t, folder.ID, *file.FolderID)

	// Uploading into someone else's folder is denied
	_, err = f.service.Upload(ctx, "bob", &folder.ID, upload("b.txt", "hi"))
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestUploadDuplicateBecomesVersion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "corp", store.PlanBusiness)

	first, err := f.service.Upload(ctx, "corp", nil, upload("report.txt", "draft one"))
	require.NoError(t, err)

	second, err := f.service.Upload(ctx, "corp", nil, upload("report.txt", "draft two"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "the existing file is updated, not duplicated")

	content, _, err := f.service.Download(ctx, "corp", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft two", readAll(t, content))

	versionRows, err := f.store.ListVersions(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, versionRows, 1)
	assert.Equal(t, int64(9), versionRows[0].Size)
}

func TestUploadDuplicateWithoutVersioning(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	_, err := f.service.Upload(ctx, "alice", nil, upload("report.txt", "draft one"))
	require.NoError(t, err)

	_, err = f.service.Upload(ctx, "alice", nil, upload("report.txt", "draft two"))
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrFeatureNotAllowed))

	// No spare blob is left behind for the refused re-upload
	assert.Equal(t, 1, f.blobs.Len())
}

func TestUploadMany(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	files, err := f.service.UploadMany(ctx, "alice", nil, []versions.Upload{
		upload("a.txt", strings.Repeat("a", 40)),
		upload("b.txt", strings.Repeat("b", 40)),
	})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	// Admission is all-or-nothing on the batch total
	_, err = f.service.UploadMany(ctx, "alice", nil, []versions.Upload{
		upload("c.txt", strings.Repeat("c", 15)),
		upload("d.txt", strings.Repeat("d", 15)),
	})
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrQuotaExceeded))

	listed, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, listed, 2, "the refused batch stored nothing")
}

func TestDownloadPermissions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)

	_, err = f.service.ShareFile(ctx, "alice", file.ID, "bob", store.PermissionView)
	require.NoError(t, err)

	// A View share can stream but not download
	content, _, err := f.service.Stream(ctx, "bob", file.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, content))

	_, _, err = f.service.Download(ctx, "bob", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	// Raising the grant unlocks the download
	require.NoError(t, f.service.UpdateFileSharePermission(ctx, "alice", file.ID, "bob", store.PermissionDownload))
	content, _, err = f.service.Download(ctx, "bob", file.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, content))
}

func TestRename(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)

	err = f.service.Rename(ctx, "alice", file.ID, "")
	assert.True(t, store.IsCode(err, store.ErrConflict))

	// No share grants renaming, not even Edit
	_, err = f.service.ShareFile(ctx, "alice", file.ID, "bob", store.PermissionEdit)
	require.NoError(t, err)
	err = f.service.Rename(ctx, "bob", file.ID, "b.txt")
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	require.NoError(t, f.service.Rename(ctx, "alice", file.ID, "b.txt"))

	got, err := f.service.Get(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Name)
}

func TestFavorites(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)
	folder, err := f.service.CreateFolder(ctx, "alice", nil, "Documents")
	require.NoError(t, err)

	require.NoError(t, f.service.SetFavorite(ctx, "alice", file.ID, true))
	require.NoError(t, f.service.SetFolderFavorite(ctx, "alice", folder.ID, true))

	files, folders, err := f.service.Favorites(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, folders, 1)
	assert.Equal(t, file.ID, files[0].ID)
	assert.Equal(t, folder.ID, folders[0].ID)

	require.NoError(t, f.service.SetFavorite(ctx, "alice", file.ID, false))
	files, _, err = f.service.Favorites(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFolderContent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	parent, err := f.service.CreateFolder(ctx, "alice", nil, "Documents")
	require.NoError(t, err)
	child, err := f.service.CreateFolder(ctx, "alice", &parent.ID, "Reports")
	require.NoError(t, err)
	file, err := f.service.Upload(ctx, "alice", &parent.ID, upload("a.txt", "hello"))
	require.NoError(t, err)

	content, err := f.service.FolderContent(ctx, "alice", parent.ID)
	require.NoError(t, err)
	require.NotNil(t, content.Folder)
	assert.Equal(t, parent.ID, content.Folder.ID)
	require.Len(t, content.Subfolders, 1)
	assert.Equal(t, child.ID, content.Subfolders[0].ID)
	require.Len(t, content.Files, 1)
	assert.Equal(t, file.ID, content.Files[0].ID)

	// No grant, no listing
	_, err = f.service.FolderContent(ctx, "bob", parent.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	// A folder share opens exactly this level
	_, err = f.service.ShareFolder(ctx, "alice", parent.ID, "bob", store.PermissionView)
	require.NoError(t, err)
	content, err = f.service.FolderContent(ctx, "bob", parent.ID)
	require.NoError(t, err)
	assert.Len(t, content.Files, 1)

	// But not the subfolder below it
	_, err = f.service.FolderContent(ctx, "bob", child.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestRootContent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	folder, err := f.service.CreateFolder(ctx, "alice", nil, "Documents")
	require.NoError(t, err)
	rootFile, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)
	_, err = f.service.Upload(ctx, "alice", &folder.ID, upload("nested.txt", "hi"))
	require.NoError(t, err)

	content, err := f.service.RootContent(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, content.Folder)
	require.Len(t, content.Subfolders, 1)
	require.Len(t, content.Files, 1, "nested files stay out of the root listing")
	assert.Equal(t, rootFile.ID, content.Files[0].ID)
}

func TestShareFile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)

	// Self-shares and shares with unknown users are refused
	_, err = f.service.ShareFile(ctx, "alice", file.ID, "alice", store.PermissionView)
	assert.True(t, store.IsCode(err, store.ErrConflict))
	_, err = f.service.ShareFile(ctx, "alice", file.ID, "nobody", store.PermissionView)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	share, err := f.service.ShareFile(ctx, "alice", file.ID, "bob", store.PermissionView)
	require.NoError(t, err)
	assert.Equal(t, "bob", share.SharedWithID)

	// Sharing twice with the same user conflicts
	_, err = f.service.ShareFile(ctx, "alice", file.ID, "bob", store.PermissionEdit)
	assert.True(t, store.IsCode(err, store.ErrConflict))

	// Only the owner manages shares
	err = f.service.RevokeFileShare(ctx, "bob", file.ID, "bob")
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))

	require.NoError(t, f.service.RevokeFileShare(ctx, "alice", file.ID, "bob"))
	_, err = f.service.Get(ctx, "bob", file.ID)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestSharedWithMe(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)
	storetesting.CreateUser(t, f.store, "bob", store.PlanFree)

	visible, err := f.service.Upload(ctx, "alice", nil, upload("visible.txt", "a"))
	require.NoError(t, err)
	hidden, err := f.service.Upload(ctx, "alice", nil, upload("hidden.txt", "b"))
	require.NoError(t, err)
	folder, err := f.service.CreateFolder(ctx, "alice", nil, "Documents")
	require.NoError(t, err)

	_, err = f.service.ShareFile(ctx, "alice", visible.ID, "bob", store.PermissionDownload)
	require.NoError(t, err)
	_, err = f.service.ShareFile(ctx, "alice", hidden.ID, "bob", store.PermissionDownload)
	require.NoError(t, err)
	_, err = f.service.ShareFolder(ctx, "alice", folder.ID, "bob", store.PermissionView)
	require.NoError(t, err)

	// Trashing a file hides it from its shares without revoking them
	require.NoError(t, f.store.SoftDeleteFile(ctx, hidden.ID, time.Now().UTC()))

	sharedFiles, sharedFolders, err := f.service.SharedWithMe(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, sharedFiles, 1)
	assert.Equal(t, visible.ID, sharedFiles[0].File.ID)
	assert.Equal(t, store.PermissionDownload, sharedFiles[0].Permission)
	require.Len(t, sharedFolders, 1)
	assert.Equal(t, folder.ID, sharedFolders[0].Folder.ID)
}

func TestTrashedFileReadsAsMissing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	file, err := f.service.Upload(ctx, "alice", nil, upload("a.txt", "hello"))
	require.NoError(t, err)
	require.NoError(t, f.store.SoftDeleteFile(ctx, file.ID, time.Now().UTC()))

	_, err = f.service.Get(ctx, "alice", file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	_, _, err = f.service.Download(ctx, "alice", file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	err = f.service.Rename(ctx, "alice", file.ID, "b.txt")
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	err = f.service.SetFavorite(ctx, "alice", file.ID, true)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestListPage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "corp", store.PlanBusiness)

	names := []string{"alpha.txt", "beta.txt", "gamma.txt", "notes.md", "report.pdf"}
	for _, name := range names {
		_, err := f.service.Upload(ctx, "corp", nil, upload(name, "x"))
		require.NoError(t, err)
	}

	page, err := f.service.ListPage(ctx, "corp", store.ListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alpha.txt", page.Items[0].Name)

	last, err := f.service.ListPage(ctx, "corp", store.ListOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "report.pdf", last.Items[0].Name)

	// Search filters by substring, case-insensitive
	found, err := f.service.ListPage(ctx, "corp", store.ListOptions{Search: "TXT"})
	require.NoError(t, err)
	assert.Equal(t, 3, found.TotalCount)

	// A page past the end is empty, not an error
	empty, err := f.service.ListPage(ctx, "corp", store.ListOptions{Page: 99})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestGetUnknownFile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storetesting.CreateUser(t, f.store, "alice", store.PlanFree)

	_, err := f.service.Get(ctx, "alice", uuid.New())
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}
