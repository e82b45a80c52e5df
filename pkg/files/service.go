// Package files is the user-facing service over the storage engine. It
// orchestrates the metadata store, the blob store, the access resolver,
// the quota ledger and the version engine into the operations a client
// actually calls: upload, download, rename, favorites, folders and
// shares.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/access"
	"github.com/skyvault/skyvault/pkg/blob"
	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/versions"
)

// Service exposes the file and folder operations of the storage engine.
type Service struct {
	store    store.MetadataStore
	blobs    blob.BlobStore
	resolver *access.Resolver
	ledger   *quota.Ledger
	versions *versions.Engine
}

// NewService wires a files service from its collaborators.
func NewService(
	metadata store.MetadataStore,
	blobs blob.BlobStore,
	resolver *access.Resolver,
	ledger *quota.Ledger,
	versionEngine *versions.Engine,
) *Service {
	return &Service{
		store:    metadata,
		blobs:    blobs,
		resolver: resolver,
		ledger:   ledger,
		versions: versionEngine,
	}
}

// Upload stores a new file in the given folder (nil for the root).
//
// When a non-deleted file with the same name already exists in the
// folder, the upload becomes a new version of that file on plans with
// version history, and fails with FeatureNotAllowed on plans without. The
// duplicate is detected by the store's uniqueness constraint, not by a
// lookup, so two concurrent uploads of the same name resolve cleanly:
// one creates, the other versions.
func (s *Service) Upload(ctx context.Context, userID string, folderID *uuid.UUID, up versions.Upload) (*store.File, error) {
	if err := s.ledger.CheckUpload(ctx, userID, up.Size); err != nil {
		return nil, err
	}
	return s.upload(ctx, userID, folderID, up)
}

// UploadMany stores a batch of files in one folder. Admission is
// all-or-nothing: if the combined sizes do not fit the quota, nothing is
// stored. Files already uploaded when a later one fails stay in place.
func (s *Service) UploadMany(ctx context.Context, userID string, folderID *uuid.UUID, uploads []versions.Upload) ([]*store.File, error) {
	sizes := make([]int64, len(uploads))
	for i := range uploads {
		sizes[i] = uploads[i].Size
	}
	if err := s.ledger.CheckUploadAll(ctx, userID, sizes...); err != nil {
		return nil, err
	}

	out := make([]*store.File, 0, len(uploads))
	for i := range uploads {
		file, err := s.upload(ctx, userID, folderID, uploads[i])
		if err != nil {
			return out, fmt.Errorf("failed to upload %q: %w", uploads[i].Name, err)
		}
		out = append(out, file)
	}
	return out, nil
}

// upload performs one admission-checked upload. The content is buffered
// so the version path can replay it after a duplicate-name insert.
func (s *Service) upload(ctx context.Context, userID string, folderID *uuid.UUID, up versions.Upload) (*store.File, error) {
	if folderID != nil {
		if _, err := s.resolver.RequireFolderOwner(ctx, userID, *folderID); err != nil {
			return nil, err
		}
	}

	content, err := io.ReadAll(up.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload content: %w", err)
	}
	if int64(len(content)) != up.Size {
		return nil, store.NewError(store.ErrConflict, "the declared size does not match the uploaded content")
	}

	file := &store.File{
		ID:          uuid.New(),
		Name:        up.Name,
		StoredKey:   uuid.NewString(),
		ContentType: up.ContentType,
		Size:        up.Size,
		OwnerID:     userID,
		FolderID:    folderID,
	}

	// Content first. An aborted transfer must not leave a file row that
	// points at a key the blob store cannot produce.
	if err := s.blobs.Put(ctx, file.StoredKey, bytes.NewReader(content), up.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	err = s.store.CreateFile(ctx, file)
	if store.IsCode(err, store.ErrAlreadyExists) {
		s.discard(file.StoredKey)
		return s.uploadAsVersion(ctx, userID, folderID, up, content)
	}
	if err != nil {
		s.discard(file.StoredKey)
		return nil, err
	}

	logger.Debug("files: user %s uploaded %q (%d bytes)", userID, up.Name, up.Size)
	return file, nil
}

// discard removes a blob whose metadata write did not go through. Runs on
// a fresh context so a caller cancellation cannot strand the blob.
func (s *Service) discard(key string) {
	if err := s.blobs.Delete(context.Background(), key); err != nil {
		logger.Warn("files: failed to discard blob %s: %v", key, err)
	}
}

// uploadAsVersion resolves the existing file behind a duplicate-name
// insert and hands the upload to the version engine.
func (s *Service) uploadAsVersion(ctx context.Context, userID string, folderID *uuid.UUID, up versions.Upload, content []byte) (*store.File, error) {
	existing, err := s.store.FindFileByName(ctx, userID, folderID, up.Name)
	if err != nil {
		return nil, err
	}

	up.Content = bytes.NewReader(content)
	if _, err := s.versions.ReplaceWithVersion(ctx, userID, existing, up); err != nil {
		return nil, err
	}

	return s.store.GetFile(ctx, existing.ID)
}

// Download opens file content for saving. Non-owners need a grant at
// Download level or above; a View-only share can look but not take.
func (s *Service) Download(ctx context.Context, userID string, fileID uuid.UUID) (io.ReadCloser, *store.File, error) {
	file, grant, err := s.resolveReadable(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	if !grant.AllowsDownload() {
		return nil, nil, store.NewError(store.ErrPermissionDenied, "your access to this file does not allow downloads")
	}

	content, err := s.open(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return content, file, nil
}

// Stream opens file content for in-place viewing. Any grant suffices.
func (s *Service) Stream(ctx context.Context, userID string, fileID uuid.UUID) (io.ReadCloser, *store.File, error) {
	file, _, err := s.resolveReadable(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	content, err := s.open(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return content, file, nil
}

// Rename changes a file's display name. Owner-only; shares never grant
// renaming.
func (s *Service) Rename(ctx context.Context, userID string, fileID uuid.UUID, newName string) error {
	if newName == "" {
		return store.NewError(store.ErrConflict, "the file name cannot be empty")
	}

	file, err := s.resolver.RequireFileOwner(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if file.Trashed() {
		return store.ErrFileNotFound
	}

	return s.store.RenameFile(ctx, fileID, newName)
}

// SetFavorite flags or unflags a file in the owner's favorites. The flag
// belongs to the owner; shares grant no say over it.
func (s *Service) SetFavorite(ctx context.Context, userID string, fileID uuid.UUID, favorite bool) error {
	file, err := s.resolver.RequireFileOwner(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if file.Trashed() {
		return store.ErrFileNotFound
	}
	return s.store.SetFileFavorite(ctx, fileID, favorite)
}

// Get returns a file the user can access.
func (s *Service) Get(ctx context.Context, userID string, fileID uuid.UUID) (*store.File, error) {
	file, _, err := s.resolveReadable(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// List returns the user's own non-deleted files, sorted by name.
func (s *Service) List(ctx context.Context, userID string) ([]store.File, error) {
	return s.store.ListFiles(ctx, userID)
}

// ListPage returns one page of the user's files, optionally filtered by
// a case-insensitive name search.
func (s *Service) ListPage(ctx context.Context, userID string, opts store.ListOptions) (store.Page[store.File], error) {
	files, err := s.store.ListFiles(ctx, userID)
	if err != nil {
		return store.Page[store.File]{}, err
	}

	if opts.Search != "" {
		needle := strings.ToLower(opts.Search)
		matched := make([]store.File, 0, len(files))
		for _, f := range files {
			if strings.Contains(strings.ToLower(f.Name), needle) {
				matched = append(matched, f)
			}
		}
		files = matched
	}

	return store.NewPage(files, opts), nil
}

// Favorites returns the user's favorite files and folders.
func (s *Service) Favorites(ctx context.Context, userID string) ([]store.File, []store.Folder, error) {
	allFiles, err := s.store.ListFiles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	allFolders, err := s.store.ListFolders(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	files := make([]store.File, 0)
	for _, f := range allFiles {
		if f.Favorite {
			files = append(files, f)
		}
	}
	folders := make([]store.Folder, 0)
	for _, f := range allFolders {
		if f.Favorite {
			folders = append(folders, f)
		}
	}
	return files, folders, nil
}

// resolveReadable loads a file and the caller's grant on it. Trashed
// files read as not found here; the trash service is the only window
// into them.
func (s *Service) resolveReadable(ctx context.Context, userID string, fileID uuid.UUID) (*store.File, *access.Grant, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file.Trashed() {
		return nil, nil, store.ErrFileNotFound
	}

	grant, err := s.resolver.ResolveFileRecord(ctx, userID, file)
	if err != nil {
		return nil, nil, err
	}
	return file, grant, nil
}

// open fetches the file's content blob.
func (s *Service) open(ctx context.Context, file *store.File) (io.ReadCloser, error) {
	content, _, err := s.blobs.Get(ctx, file.StoredKey)
	if errors.Is(err, blob.ErrNotFound) {
		logger.Error("files: file %s references missing blob %s", file.ID, file.StoredKey)
		return nil, store.NewError(store.ErrStorageInconsistency, "the file content is no longer available")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file content: %w", err)
	}
	return content, nil
}
