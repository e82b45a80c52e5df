package files

import (
	"context"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/store"
)

// SharedFile is a file someone shared with the caller, with the granted
// permission.
type SharedFile struct {
	File       store.File
	Permission store.Permission
}

// SharedFolder is a folder someone shared with the caller.
type SharedFolder struct {
	Folder     store.Folder
	Permission store.Permission
}

// ShareFile grants another user access to a file. Owner-only; a file
// cannot be shared with its owner or shared twice with the same user.
func (s *Service) ShareFile(ctx context.Context, ownerID string, fileID uuid.UUID, targetUserID string, permission store.Permission) (*store.FileShare, error) {
	if targetUserID == ownerID {
		return nil, store.NewError(store.ErrConflict, "you cannot share a file with yourself")
	}

	file, err := s.resolver.RequireFileOwner(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Trashed() {
		return nil, store.ErrFileNotFound
	}

	if _, err := s.store.GetUser(ctx, targetUserID); err != nil {
		return nil, err
	}

	share := &store.FileShare{
		ID:           uuid.New(),
		FileID:       fileID,
		OwnerID:      ownerID,
		SharedWithID: targetUserID,
		Permission:   permission,
	}
	if err := s.store.CreateFileShare(ctx, share); err != nil {
		return nil, err
	}

	logger.Debug("files: %s shared file %s with %s (%s)", ownerID, fileID, targetUserID, permission)
	return share, nil
}

// RevokeFileShare withdraws a user's access to a file. Owner-only. The
// share row is kept, flagged revoked, so the grant history stays
// auditable.
func (s *Service) RevokeFileShare(ctx context.Context, ownerID string, fileID uuid.UUID, targetUserID string) error {
	if _, err := s.resolver.RequireFileOwner(ctx, ownerID, fileID); err != nil {
		return err
	}
	return s.store.RevokeFileShare(ctx, fileID, targetUserID)
}

// UpdateFileSharePermission changes the level of an existing grant.
// Owner-only.
func (s *Service) UpdateFileSharePermission(ctx context.Context, ownerID string, fileID uuid.UUID, targetUserID string, permission store.Permission) error {
	if _, err := s.resolver.RequireFileOwner(ctx, ownerID, fileID); err != nil {
		return err
	}
	return s.store.UpdateFileSharePermission(ctx, fileID, targetUserID, permission)
}

// ShareFolder grants another user access to a folder and, through it, to
// the folder's immediate contents. Owner-only.
func (s *Service) ShareFolder(ctx context.Context, ownerID string, folderID uuid.UUID, targetUserID string, permission store.Permission) (*store.FolderShare, error) {
	if targetUserID == ownerID {
		return nil, store.NewError(store.ErrConflict, "you cannot share a folder with yourself")
	}

	if _, err := s.resolver.RequireFolderOwner(ctx, ownerID, folderID); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, targetUserID); err != nil {
		return nil, err
	}

	share := &store.FolderShare{
		ID:           uuid.New(),
		FolderID:     folderID,
		OwnerID:      ownerID,
		SharedWithID: targetUserID,
		Permission:   permission,
	}
	if err := s.store.CreateFolderShare(ctx, share); err != nil {
		return nil, err
	}

	logger.Debug("files: %s shared folder %s with %s (%s)", ownerID, folderID, targetUserID, permission)
	return share, nil
}

// RevokeFolderShare withdraws a user's access to a folder. Owner-only.
func (s *Service) RevokeFolderShare(ctx context.Context, ownerID string, folderID uuid.UUID, targetUserID string) error {
	if _, err := s.resolver.RequireFolderOwner(ctx, ownerID, folderID); err != nil {
		return err
	}
	return s.store.RevokeFolderShare(ctx, folderID, targetUserID)
}

// SharedWithMe returns everything currently shared with the user.
// Trashed files are filtered out: moving a file to the trash hides it
// from its shares without revoking them.
func (s *Service) SharedWithMe(ctx context.Context, userID string) ([]SharedFile, []SharedFolder, error) {
	fileShares, err := s.store.ListFileSharesWith(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	sharedFiles := make([]SharedFile, 0, len(fileShares))
	for _, share := range fileShares {
		file, err := s.store.GetFile(ctx, share.FileID)
		if err != nil {
			if store.IsCode(err, store.ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		if file.Trashed() {
			continue
		}
		sharedFiles = append(sharedFiles, SharedFile{File: *file, Permission: share.Permission})
	}

	folderShares, err := s.store.ListFolderSharesWith(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	sharedFolders := make([]SharedFolder, 0, len(folderShares))
	for _, share := range folderShares {
		folder, err := s.store.GetFolder(ctx, share.FolderID)
		if err != nil {
			if store.IsCode(err, store.ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		sharedFolders = append(sharedFolders, SharedFolder{Folder: *folder, Permission: share.Permission})
	}

	return sharedFiles, sharedFolders, nil
}
