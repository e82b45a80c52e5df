package versions

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

	"github.com/skyvault/skyvault/pkg/blob"
	blobMemory "github.com/skyvault/skyvault/pkg/blob/memory"
	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/store/memory"
	storetesting "github.com/skyvault/skyvault/pkg/store/testing"
)

func newEngineFixture(t *testing.T) (*Engine, store.MetadataStore, blob.BlobStore) {
	t.Helper()

	s := memory.New()
	t.Cleanup(func() { s.Close() })
	blobs := blobMemory.New()
	ledger := quota.NewLedger(s, quota.DefaultCatalog())
	return NewEngine(s, blobs, ledger), s, blobs
}

// uploadFile seeds a file row with its content blob in place.
func uploadFile(t *testing.T, s store.MetadataStore, blobs blob.BlobStore, ownerID, name, content string) *store.File {
	t.Helper()

	file := storetesting.CreateFile(t, s, ownerID, name, nil, int64(len(content)))
	require.NoError(t, blobs.Put(context.Background(), file.StoredKey, strings.NewReader(content), "text/plain"))
	return file
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()

	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestReplaceWithVersion(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")

	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name:        "report.txt",
		ContentType: "text/plain",
		Size:        9,
		Content:     strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	// The snapshot keeps the old content fields
	assert.Equal(t, file.ID, version.FileID)
	assert.Equal(t, file.StoredKey, version.StoredKey)
	assert.Equal(t, int64(9), version.Size)
	assert.Equal(t, "corp", version.CreatedBy)

	// The live row points at the new content
	updated, err := s.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.NotEqual(t, file.StoredKey, updated.StoredKey)

	content, _, err := blobs.Get(ctx, updated.StoredKey)
	require.NoError(t, err)
	assert.Equal(t, "draft two", readAll(t, content))

	// The old blob is still there for the version
	content, _, err = blobs.Get(ctx, version.StoredKey)
	require.NoError(t, err)
	assert.Equal(t, "draft one", readAll(t, content))
}

func TestReplaceWithVersionPlanGate(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "alice", store.PlanFree)
	file := uploadFile(t, s, blobs, "alice", "report.txt", "draft one")

	_, err := engine.ReplaceWithVersion(ctx, "alice", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrFeatureNotAllowed))

	versions, err := s.ListVersions(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, versions, "no snapshot is taken on refusal")
}

// failingBlobStore refuses writes, standing in for an aborted transfer.
type failingBlobStore struct {
	blob.BlobStore
}

func (f *failingBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return errors.New("connection reset")
}

func TestReplaceWithVersionFailedTransfer(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")

	engine.blobs = &failingBlobStore{BlobStore: blobs}
	_, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.Error(t, err)

	// The failed transfer leaves neither a version row nor a changed file
	versions, err := s.ListVersions(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	current, err := s.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.StoredKey, current.StoredKey)
}

func TestReplaceWithVersionOwnerOnly(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	storetesting.CreateUser(t, s, "bob", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")

	_, err := engine.ReplaceWithVersion(ctx, "bob", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrPermissionDenied))
}

func TestRestore(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")

	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Restore(ctx, "corp", file.ID, version.ID))

	restored, err := s.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, version.StoredKey, restored.StoredKey)

	// The pre-restore state became a version of its own
	versions, err := engine.List(ctx, "corp", file.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	backup := versions[0]
	assert.True(t, strings.HasPrefix(backup.Description, "Backup before restore ("), backup.Description)

	// And that backup leads back to the replaced content
	content, _, err := blobs.Get(ctx, backup.StoredKey)
	require.NoError(t, err)
	assert.Equal(t, "draft two", readAll(t, content))
}

func TestRestoreWrongVersion(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	other := uploadFile(t, s, blobs, "corp", "other.txt", "other")
	foreign := storetesting.CreateVersion(t, s, other.ID, "corp", file.CreatedAt)

	// A version of a different file never restores
	err := engine.Restore(ctx, "corp", file.ID, foreign.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	err = engine.Restore(ctx, "corp", file.ID, uuid.New())
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestVersionDownload(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	content, got, err := engine.Download(ctx, "corp", file.ID, version.ID)
	require.NoError(t, err)
	assert.Equal(t, version.ID, got.ID)
	assert.Equal(t, "draft one", readAll(t, content))
}

func TestVersionDownloadMissingBlob(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	require.NoError(t, blobs.Delete(ctx, version.StoredKey))

	_, _, err = engine.Download(ctx, "corp", file.ID, version.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrStorageInconsistency))
}

func TestVersionDelete(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Delete(ctx, "corp", file.ID, version.ID))

	versions, err := engine.List(ctx, "corp", file.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	// A deleted version cannot be restored or deleted again
	err = engine.Restore(ctx, "corp", file.ID, version.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
	err = engine.Delete(ctx, "corp", file.ID, version.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	// The blob survives the soft delete
	exists, err := blobs.Exists(ctx, version.StoredKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVersionOperationsPlanGate(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "alice", store.PlanFree)
	file := uploadFile(t, s, blobs, "alice", "report.txt", "draft one")

	_, err := engine.List(ctx, "alice", file.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrFeatureNotAllowed))

	err = engine.SetDescription(ctx, "alice", file.ID, uuid.New(), "nope")
	assert.True(t, store.IsCode(err, store.ErrFeatureNotAllowed))
}

func TestVersionOperationsOnTrashedFile(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteFile(ctx, file.ID, time.Now().UTC()))

	// A trashed file's history is out of reach until it is restored
	_, err = engine.List(ctx, "corp", file.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	err = engine.Restore(ctx, "corp", file.ID, version.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	_, _, err = engine.Download(ctx, "corp", file.ID, version.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))

	err = engine.Delete(ctx, "corp", file.ID, version.ID)
	assert.True(t, store.IsCode(err, store.ErrNotFound))
}

func TestSetDescription(t *testing.T) {
	engine, s, blobs := newEngineFixture(t)
	ctx := context.Background()

	storetesting.CreateUser(t, s, "corp", store.PlanBusiness)
	file := uploadFile(t, s, blobs, "corp", "report.txt", "draft one")
	version, err := engine.ReplaceWithVersion(ctx, "corp", file, Upload{
		Name: "report.txt", ContentType: "text/plain", Size: 9,
		Content: strings.NewReader("draft two"),
	})
	require.NoError(t, err)

	require.NoError(t, engine.SetDescription(ctx, "corp", file.ID, version.ID, "the good draft"))

	got, err := s.GetVersion(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, "the good draft", got.Description)
}
