package badger

import (
	"context"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// ============================================================================
// Folders
// ============================================================================

// CreateFolder persists a folder and its index entries. The sibling-name
// index doubles as the case-insensitive uniqueness constraint.
func (s *BadgerMetadataStore) CreateFolder(ctx context.Context, folder *store.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if folder.ID == uuid.Nil {
		folder.ID = uuid.New()
	}
	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = folder.CreatedAt
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		nameKey := folderNameKey(folder.OwnerID, folder.ParentID, folder.Name)
		taken, err := keyExists(txn, nameKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrConflict, "folder with the same name already exists")
		}

		if err := setValue(txn, folderKey(folder.ID), folder); err != nil {
			return err
		}
		if err := txn.Set(nameKey, []byte(folder.ID.String())); err != nil {
			return err
		}
		return txn.Set(folderOwnerKey(folder.OwnerID, folder.ID), nil)
	})
}

// GetFolder retrieves a folder by id.
func (s *BadgerMetadataStore) GetFolder(ctx context.Context, id uuid.UUID) (*store.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var folder store.Folder
	err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, folderKey(id), &folder)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// RenameFolder changes a folder's name, failing when the new name collides
// with a sibling (case-insensitive).
func (s *BadgerMetadataStore) RenameFolder(ctx context.Context, id uuid.UUID, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var folder store.Folder
		if err := getValue(txn, folderKey(id), &folder); err != nil {
			return err
		}

		oldKey := folderNameKey(folder.OwnerID, folder.ParentID, folder.Name)
		newKey := folderNameKey(folder.OwnerID, folder.ParentID, newName)

		if !strings.EqualFold(folder.Name, newName) {
			taken, err := keyExists(txn, newKey)
			if err != nil {
				return err
			}
			if taken {
				return store.NewError(store.ErrConflict, "folder with the same name already exists")
			}
		}

		if err := txn.Delete(oldKey); err != nil {
			return err
		}
		if err := txn.Set(newKey, []byte(folder.ID.String())); err != nil {
			return err
		}

		folder.Name = newName
		folder.UpdatedAt = time.Now().UTC()
		return setValue(txn, folderKey(id), &folder)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFolderNotFound
	}
	return err
}

// SetFolderFavorite sets or clears the favorite flag.
func (s *BadgerMetadataStore) SetFolderFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var folder store.Folder
		if err := getValue(txn, folderKey(id), &folder); err != nil {
			return err
		}
		folder.Favorite = favorite
		folder.UpdatedAt = time.Now().UTC()
		return setValue(txn, folderKey(id), &folder)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFolderNotFound
	}
	return err
}

// ListFolderChildren returns the owner's folders directly under parentID,
// sorted by name.
func (s *BadgerMetadataStore) ListFolderChildren(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]store.Folder, error) {
	folders, err := s.listOwnerFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	children := make([]store.Folder, 0)
	for _, folder := range folders {
		if sameParent(folder.ParentID, parentID) {
			children = append(children, folder)
		}
	}
	sortFoldersByName(children)
	return children, nil
}

// ListFolders returns all folders owned by the user, sorted by name.
func (s *BadgerMetadataStore) ListFolders(ctx context.Context, ownerID string) ([]store.Folder, error) {
	folders, err := s.listOwnerFolders(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sortFoldersByName(folders)
	return folders, nil
}

// listOwnerFolders scans the owner index and loads every folder row.
func (s *BadgerMetadataStore) listOwnerFolders(ctx context.Context, ownerID string) ([]store.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folders := make([]store.Folder, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixFolderOwner + ownerID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			idStr := string(it.Item().Key()[len(prefix):])
			id, err := uuid.Parse(idStr)
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed folder owner index entry")
			}

			var folder store.Folder
			if err := getValue(txn, folderKey(id), &folder); err != nil {
				return err
			}
			folders = append(folders, folder)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortFoldersByName(folders []store.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
}
