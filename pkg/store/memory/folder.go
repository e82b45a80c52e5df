package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

func cloneFolder(f *store.Folder) *store.Folder {
	out := *f
	out.ParentID = cloneUUIDPtr(f.ParentID)
	return &out
}

func (s *MemoryMetadataStore) CreateFolder(ctx context.Context, folder *store.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := folderNameKey(folder.OwnerID, folder.ParentID, folder.Name)
	if _, ok := s.folderNames[key]; ok {
		return store.NewError(store.ErrConflict, "folder with the same name already exists")
	}

	f := cloneFolder(folder)
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}

	s.folders[f.ID] = f
	s.folderNames[key] = f.ID
	return nil
}

func (s *MemoryMetadataStore) GetFolder(ctx context.Context, id uuid.UUID) (*store.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return nil, store.ErrFolderNotFound
	}

	return cloneFolder(f), nil
}

func (s *MemoryMetadataStore) RenameFolder(ctx context.Context, id uuid.UUID, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return store.ErrFolderNotFound
	}

	oldKey := folderNameKey(f.OwnerID, f.ParentID, f.Name)
	newKey := folderNameKey(f.OwnerID, f.ParentID, newName)

	if newKey != oldKey {
		if _, taken := s.folderNames[newKey]; taken {
			return store.NewError(store.ErrConflict, "folder with the same name already exists")
		}
		delete(s.folderNames, oldKey)
		s.folderNames[newKey] = f.ID
	}

	f.Name = newName
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMetadataStore) SetFolderFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return store.ErrFolderNotFound
	}

	f.Favorite = favorite
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMetadataStore) ListFolderChildren(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]store.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Folder
	for _, f := range s.folders {
		if f.OwnerID != ownerID {
			continue
		}
		if !sameParent(f.ParentID, parentID) {
			continue
		}
		out = append(out, *cloneFolder(f))
	}

	sortFoldersByName(out)
	return out, nil
}

func (s *MemoryMetadataStore) ListFolders(ctx context.Context, ownerID string) ([]store.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Folder
	for _, f := range s.folders {
		if f.OwnerID == ownerID {
			out = append(out, *cloneFolder(f))
		}
	}

	sortFoldersByName(out)
	return out, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortFoldersByName(folders []store.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
}
