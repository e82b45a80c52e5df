// Package versions implements file version history.
//
// A version is an immutable snapshot of a file's content metadata, taken
// at the moment the file is about to be overwritten. The snapshot keeps
// the old blob alive under its stored key while the file row moves on to
// the new content. Restoring works the same way in reverse: the current
// state is snapshotted first, then the file row is pointed back at the
// version's blob.
//
// Version history is a Business-plan feature. Every entry point checks
// the owner's plan through the quota ledger.
package versions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/blob"
	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/store"
)

// Upload describes incoming file content. Size must match the number of
// bytes Content yields; admission control trusts it.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Engine manages version history for files.
type Engine struct {
	store  store.MetadataStore
	blobs  blob.BlobStore
	ledger *quota.Ledger
}

// NewEngine creates a version engine.
func NewEngine(metadata store.MetadataStore, blobs blob.BlobStore, ledger *quota.Ledger) *Engine {
	return &Engine{store: metadata, blobs: blobs, ledger: ledger}
}

// ReplaceWithVersion overwrites file's content with upload, snapshotting
// the pre-upload state as a new version. Called by the upload path when a
// file with the same identity triple already exists.
//
// On plans without version history the re-upload is refused with
// FeatureNotAllowed.
func (e *Engine) ReplaceWithVersion(ctx context.Context, userID string, file *store.File, upload Upload) (*store.FileVersion, error) {
	if file.OwnerID != userID {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to modify this file")
	}

	supported, err := e.ledger.SupportsVersioning(ctx, file.OwnerID)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, store.NewError(store.ErrFeatureNotAllowed, "your plan does not include file version history")
	}

	// Content first. A failed transfer must not leave a version row behind.
	newKey := uuid.NewString()
	if err := e.blobs.Put(ctx, newKey, upload.Content, upload.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	version := snapshotOf(file, userID, "")
	if err := e.store.CreateVersion(ctx, version); err != nil {
		e.discard(newKey)
		return nil, fmt.Errorf("failed to snapshot version: %w", err)
	}

	if err := e.store.UpdateFileContent(ctx, file.ID, upload.Name, newKey, upload.ContentType, upload.Size); err != nil {
		return nil, err
	}

	logger.Debug("versions: file %s replaced, snapshot %s keeps key %s", file.ID, version.ID, version.StoredKey)
	return version, nil
}

// List returns the file's versions, newest first. Owner-only.
func (e *Engine) List(ctx context.Context, userID string, fileID uuid.UUID) ([]store.FileVersion, error) {
	if _, err := e.requireVersioning(ctx, userID, fileID); err != nil {
		return nil, err
	}
	return e.store.ListVersions(ctx, fileID)
}

// Restore points the file back at the given version's content. The
// pre-restore state is snapshotted first so the operation is itself
// undoable.
func (e *Engine) Restore(ctx context.Context, userID string, fileID, versionID uuid.UUID) error {
	file, err := e.requireVersioning(ctx, userID, fileID)
	if err != nil {
		return err
	}

	version, err := e.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.FileID != fileID || version.Deleted {
		return store.ErrVersionNotFound
	}

	backup := snapshotOf(file, userID,
		fmt.Sprintf("Backup before restore (%s)", time.Now().UTC().Format(time.RFC3339)))
	if err := e.store.CreateVersion(ctx, backup); err != nil {
		return fmt.Errorf("failed to snapshot pre-restore state: %w", err)
	}

	if err := e.store.UpdateFileContent(ctx, fileID, version.Name, version.StoredKey, version.ContentType, version.Size); err != nil {
		return err
	}

	logger.Info("versions: file %s restored to version %s by %s", fileID, versionID, userID)
	return nil
}

// Download streams a version's content. Owner-only.
func (e *Engine) Download(ctx context.Context, userID string, fileID, versionID uuid.UUID) (io.ReadCloser, *store.FileVersion, error) {
	if _, err := e.requireVersioning(ctx, userID, fileID); err != nil {
		return nil, nil, err
	}

	version, err := e.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	if version.FileID != fileID || version.Deleted {
		return nil, nil, store.ErrVersionNotFound
	}

	content, _, err := e.blobs.Get(ctx, version.StoredKey)
	if errors.Is(err, blob.ErrNotFound) {
		logger.Error("versions: version %s references missing blob %s", version.ID, version.StoredKey)
		return nil, nil, store.NewError(store.ErrStorageInconsistency, "the version content is no longer available")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open version content: %w", err)
	}
	return content, version, nil
}

// Delete soft-deletes a version. The row and blob stay in place; the
// version just stops appearing in listings and cannot be restored.
func (e *Engine) Delete(ctx context.Context, userID string, fileID, versionID uuid.UUID) error {
	if _, err := e.requireVersioning(ctx, userID, fileID); err != nil {
		return err
	}

	version, err := e.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.FileID != fileID || version.Deleted {
		return store.ErrVersionNotFound
	}

	return e.store.SoftDeleteVersion(ctx, versionID, time.Now().UTC())
}

// SetDescription replaces a version's free-text description.
func (e *Engine) SetDescription(ctx context.Context, userID string, fileID, versionID uuid.UUID, description string) error {
	if _, err := e.requireVersioning(ctx, userID, fileID); err != nil {
		return err
	}

	version, err := e.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.FileID != fileID || version.Deleted {
		return store.ErrVersionNotFound
	}

	return e.store.UpdateVersionDescription(ctx, versionID, description)
}

// discard removes a blob written by an operation that failed afterwards.
// Runs on a fresh context so a caller cancellation cannot strand the blob.
func (e *Engine) discard(key string) {
	if err := e.blobs.Delete(context.Background(), key); err != nil {
		logger.Warn("versions: failed to discard blob %s: %v", key, err)
	}
}

// requireVersioning loads the file and checks that it is not in the
// trash, that the caller owns it and that the owner's plan includes
// version history.
func (e *Engine) requireVersioning(ctx context.Context, userID string, fileID uuid.UUID) (*store.File, error) {
	file, err := e.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this file")
	}
	if file.Trashed() {
		return nil, store.ErrFileNotFound
	}

	supported, err := e.ledger.SupportsVersioning(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, store.NewError(store.ErrFeatureNotAllowed, "your plan does not include file version history")
	}
	return file, nil
}

// snapshotOf builds a version row from the file's current content fields.
func snapshotOf(file *store.File, createdBy, description string) *store.FileVersion {
	return &store.FileVersion{
		ID:          uuid.New(),
		FileID:      file.ID,
		Name:        file.Name,
		StoredKey:   file.StoredKey,
		ContentType: file.ContentType,
		Size:        file.Size,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
		Description: description,
	}
}
