package files

import (
	"context"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// FolderContent is one level of the folder tree: the folder itself (nil
// at the root), its direct subfolders and its files.
type FolderContent struct {
	Folder     *store.Folder
	Subfolders []store.Folder
	Files      []store.File
}

// CreateFolder creates a folder under parentID (nil for a root folder).
// Sibling names are unique per owner, case-insensitive.
func (s *Service) CreateFolder(ctx context.Context, userID string, parentID *uuid.UUID, name string) (*store.Folder, error) {
	if name == "" {
		return nil, store.NewError(store.ErrConflict, "the folder name cannot be empty")
	}

	if parentID != nil {
		if _, err := s.resolver.RequireFolderOwner(ctx, userID, *parentID); err != nil {
			return nil, err
		}
	}

	folder := &store.Folder{
		ID:       uuid.New(),
		Name:     name,
		OwnerID:  userID,
		ParentID: parentID,
	}
	if err := s.store.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// RenameFolder changes a folder's name. Owner-only.
func (s *Service) RenameFolder(ctx context.Context, userID string, folderID uuid.UUID, newName string) error {
	if newName == "" {
		return store.NewError(store.ErrConflict, "the folder name cannot be empty")
	}

	if _, err := s.resolver.RequireFolderOwner(ctx, userID, folderID); err != nil {
		return err
	}
	return s.store.RenameFolder(ctx, folderID, newName)
}

// SetFolderFavorite flags or unflags a folder in the owner's favorites.
func (s *Service) SetFolderFavorite(ctx context.Context, userID string, folderID uuid.UUID, favorite bool) error {
	if _, err := s.resolver.RequireFolderOwner(ctx, userID, folderID); err != nil {
		return err
	}
	return s.store.SetFolderFavorite(ctx, folderID, favorite)
}

// FolderContent returns one level of a folder the user can access:
// direct subfolders and files, both sorted by name. A folder share
// grants exactly this level; the contents of subfolders stay off limits
// until shared themselves.
func (s *Service) FolderContent(ctx context.Context, userID string, folderID uuid.UUID) (*FolderContent, error) {
	if _, err := s.resolver.ResolveFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}

	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	subfolders, err := s.store.ListFolderChildren(ctx, folder.OwnerID, &folderID)
	if err != nil {
		return nil, err
	}

	fileRows, err := s.store.ListFolderFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	return &FolderContent{
		Folder:     folder,
		Subfolders: subfolders,
		Files:      fileRows,
	}, nil
}

// RootContent returns the user's own root level: folders without a
// parent and files outside any folder.
func (s *Service) RootContent(ctx context.Context, userID string) (*FolderContent, error) {
	subfolders, err := s.store.ListFolderChildren(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	allFiles, err := s.store.ListFiles(ctx, userID)
	if err != nil {
		return nil, err
	}

	rootFiles := make([]store.File, 0)
	for _, file := range allFiles {
		if file.FolderID == nil {
			rootFiles = append(rootFiles, file)
		}
	}

	return &FolderContent{
		Subfolders: subfolders,
		Files:      rootFiles,
	}, nil
}
