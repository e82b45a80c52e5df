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
// Files
// ============================================================================

// CreateFile persists a file row and its index entries. The name triple
// index entry is the uniqueness constraint: when it is already present the
// insert fails with AlreadyExists so the upload path can retry as a
// version-create.
func (s *BadgerMetadataStore) CreateFile(ctx context.Context, file *store.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	if file.UpdatedAt.IsZero() {
		file.UpdatedAt = file.CreatedAt
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		nameKey := fileNameKey(file.OwnerID, file.FolderID, file.Name)
		taken, err := keyExists(txn, nameKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
		}

		if err := setValue(txn, fileKey(file.ID), file); err != nil {
			return err
		}
		if err := txn.Set(nameKey, []byte(file.ID.String())); err != nil {
			return err
		}
		return txn.Set(fileOwnerKey(file.OwnerID, file.ID), nil)
	})
}

// GetFile retrieves a file by id, trashed files included.
func (s *BadgerMetadataStore) GetFile(ctx context.Context, id uuid.UUID) (*store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file store.File
	err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FindFileByName resolves the non-deleted file matching the identity triple
// through the name index.
func (s *BadgerMetadataStore) FindFileByName(ctx context.Context, ownerID string, folderID *uuid.UUID, name string) (*store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file store.File
	err := s.view(func(txn *badger.Txn) error {
		idBytes, err := getBytes(txn, fileNameKey(ownerID, folderID, name))
		if err != nil {
			return err
		}
		id, err := uuid.Parse(string(idBytes))
		if err != nil {
			return store.NewError(store.ErrStorageInconsistency, "malformed file name index entry")
		}
		return getValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateFileContent overwrites the file's name, stored key, content type
// and size in place, keeping the name index consistent when the display
// name changes.
func (s *BadgerMetadataStore) UpdateFileContent(ctx context.Context, id uuid.UUID, name, storedKey, contentType string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}

		if name != file.Name {
			newKey := fileNameKey(file.OwnerID, file.FolderID, name)
			taken, err := keyExists(txn, newKey)
			if err != nil {
				return err
			}
			if taken {
				return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
			}
			if !file.Trashed() {
				if err := txn.Delete(fileNameKey(file.OwnerID, file.FolderID, file.Name)); err != nil {
					return err
				}
				if err := txn.Set(newKey, []byte(file.ID.String())); err != nil {
					return err
				}
			}
		}

		file.Name = name
		file.StoredKey = storedKey
		file.ContentType = contentType
		file.Size = size
		file.UpdatedAt = time.Now().UTC()
		return setValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// RenameFile changes the display name, enforcing the identity triple
// uniqueness against other non-deleted files.
func (s *BadgerMetadataStore) RenameFile(ctx context.Context, id uuid.UUID, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}
		if newName == file.Name {
			return nil
		}

		newKey := fileNameKey(file.OwnerID, file.FolderID, newName)
		taken, err := keyExists(txn, newKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
		}

		if !file.Trashed() {
			if err := txn.Delete(fileNameKey(file.OwnerID, file.FolderID, file.Name)); err != nil {
				return err
			}
			if err := txn.Set(newKey, []byte(file.ID.String())); err != nil {
				return err
			}
		}

		file.Name = newName
		file.UpdatedAt = time.Now().UTC()
		return setValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// SetFileFavorite sets or clears the favorite flag.
func (s *BadgerMetadataStore) SetFileFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}
		file.Favorite = favorite
		file.UpdatedAt = time.Now().UTC()
		return setValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// ListFiles returns the owner's non-deleted files, sorted by name.
func (s *BadgerMetadataStore) ListFiles(ctx context.Context, ownerID string) ([]store.File, error) {
	files, err := s.listOwnerFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]store.File, 0, len(files))
	for _, file := range files {
		if !file.Trashed() {
			out = append(out, file)
		}
	}
	sortFilesByName(out)
	return out, nil
}

// ListFolderFiles returns the non-deleted files inside a folder, sorted by
// name.
func (s *BadgerMetadataStore) ListFolderFiles(ctx context.Context, folderID uuid.UUID) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]store.File, 0)
	err := s.scanFiles(func(file *store.File) {
		if !file.Trashed() && file.FolderID != nil && *file.FolderID == folderID {
			out = append(out, *file)
		}
	})
	if err != nil {
		return nil, err
	}
	sortFilesByName(out)
	return out, nil
}

// SumFileSizes totals the sizes of all file rows owned by the user.
// Soft-deleted rows count too; trash keeps consuming quota until purged.
func (s *BadgerMetadataStore) SumFileSizes(ctx context.Context, ownerID string) (int64, error) {
	files, err := s.listOwnerFiles(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, file := range files {
		total += file.Size
	}
	return total, nil
}

// SoftDeleteFile moves the file to the trash: the deletion timestamp is
// set, the favorite flag cleared and the name index entry removed so the
// identity triple becomes available again.
func (s *BadgerMetadataStore) SoftDeleteFile(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}
		if file.Trashed() {
			return store.ErrFileNotFound
		}

		if err := txn.Delete(fileNameKey(file.OwnerID, file.FolderID, file.Name)); err != nil {
			return err
		}

		at = at.UTC()
		file.DeletedAt = &at
		file.Favorite = false
		file.UpdatedAt = at
		return setValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// RestoreFile clears the soft-delete marker, re-claiming the identity
// triple. Fails with Conflict when another file has taken it meanwhile.
func (s *BadgerMetadataStore) RestoreFile(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}
		if !file.Trashed() {
			return store.ErrFileNotFound
		}

		nameKey := fileNameKey(file.OwnerID, file.FolderID, file.Name)
		taken, err := keyExists(txn, nameKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrConflict, "a file with the same name already exists in this folder")
		}

		if err := txn.Set(nameKey, []byte(file.ID.String())); err != nil {
			return err
		}

		file.DeletedAt = nil
		file.UpdatedAt = time.Now().UTC()
		return setValue(txn, fileKey(id), &file)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// DeleteFile removes the file row, its index entries and its version rows
// permanently. Blob cleanup is the caller's responsibility.
func (s *BadgerMetadataStore) DeleteFile(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var file store.File
		if err := getValue(txn, fileKey(id), &file); err != nil {
			return err
		}

		if !file.Trashed() {
			if err := txn.Delete(fileNameKey(file.OwnerID, file.FolderID, file.Name)); err != nil {
				return err
			}
		}
		if err := txn.Delete(fileOwnerKey(file.OwnerID, file.ID)); err != nil {
			return err
		}

		prefix := []byte(prefixVersionByFile + file.ID.String() + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			versionID, err := uuid.Parse(string(key[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed version index entry")
			}
			if err := txn.Delete(versionKey(versionID)); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return txn.Delete(fileKey(file.ID))
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrFileNotFound
	}
	return err
}

// ListTrashed returns the owner's soft-deleted files with DeletedAt at or
// after deletedAfter, newest deletion first. Reads through the owner
// index so one tenant's trash never scans another's rows.
func (s *BadgerMetadataStore) ListTrashed(ctx context.Context, ownerID string, deletedAfter time.Time) ([]store.File, error) {
	files, err := s.listOwnerFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]store.File, 0)
	for _, file := range files {
		if !file.Trashed() {
			continue
		}
		if !deletedAfter.IsZero() && file.DeletedAt.Before(deletedAfter) {
			continue
		}
		out = append(out, file)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletedAt.After(*out[j].DeletedAt)
	})
	return out, nil
}

// ListTrashedBefore returns soft-deleted files whose DeletedAt is at or
// before threshold. Used by the retention purge.
func (s *BadgerMetadataStore) ListTrashedBefore(ctx context.Context, threshold time.Time) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]store.File, 0)
	err := s.scanFiles(func(file *store.File) {
		if file.Trashed() && !file.DeletedAt.After(threshold) {
			out = append(out, *file)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// listOwnerFiles scans the owner index and loads every file row, trashed
// rows included.
func (s *BadgerMetadataStore) listOwnerFiles(ctx context.Context, ownerID string) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]store.File, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixFileOwner + ownerID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed file owner index entry")
			}

			var file store.File
			if err := getValue(txn, fileKey(id), &file); err != nil {
				return err
			}
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// scanFiles iterates every file row in the store.
func (s *BadgerMetadataStore) scanFiles(fn func(file *store.File)) error {
	return s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixFile)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var file store.File
			err := it.Item().Value(func(data []byte) error {
				return decodeValue(data, &file)
			})
			if err != nil {
				return err
			}
			fn(&file)
		}
		return nil
	})
}

func sortFilesByName(files []store.File) {
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
}
