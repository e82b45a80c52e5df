package badger

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// ============================================================================
// File Shares
// ============================================================================

// CreateFileShare persists a share. The active-share index entry enforces
// the single non-revoked share per (file, user) pair.
func (s *BadgerMetadataStore) CreateFileShare(ctx context.Context, share *store.FileShare) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if share.ID == uuid.Nil {
		share.ID = uuid.New()
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		activeKey := fileShareActiveKey(share.FileID, share.SharedWithID)
		taken, err := keyExists(txn, activeKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrConflict, "this file is already shared with this user")
		}

		if err := setValue(txn, fileShareKey(share.ID), share); err != nil {
			return err
		}
		if err := txn.Set(activeKey, []byte(share.ID.String())); err != nil {
			return err
		}
		return txn.Set(fileShareUserKey(share.SharedWithID, share.ID), nil)
	})
}

// GetFileShare returns the non-revoked share granting userID access to
// fileID.
func (s *BadgerMetadataStore) GetFileShare(ctx context.Context, fileID uuid.UUID, userID string) (*store.FileShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var share store.FileShare
	err := s.view(func(txn *badger.Txn) error {
		return s.loadActiveFileShare(txn, fileID, userID, &share)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// RevokeFileShare flags the active share revoked and drops the active
// index entry. The share row stays for audit history.
func (s *BadgerMetadataStore) RevokeFileShare(ctx context.Context, fileID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var share store.FileShare
		if err := s.loadActiveFileShare(txn, fileID, userID, &share); err != nil {
			return err
		}

		share.Revoked = true
		if err := setValue(txn, fileShareKey(share.ID), &share); err != nil {
			return err
		}
		return txn.Delete(fileShareActiveKey(fileID, userID))
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrShareNotFound
	}
	return err
}

// UpdateFileSharePermission changes the permission of the active share.
func (s *BadgerMetadataStore) UpdateFileSharePermission(ctx context.Context, fileID uuid.UUID, userID string, permission store.Permission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var share store.FileShare
		if err := s.loadActiveFileShare(txn, fileID, userID, &share); err != nil {
			return err
		}
		share.Permission = permission
		return setValue(txn, fileShareKey(share.ID), &share)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrShareNotFound
	}
	return err
}

// ListFileSharesWith returns all non-revoked file shares granted to the
// user, newest first.
func (s *BadgerMetadataStore) ListFileSharesWith(ctx context.Context, userID string) ([]store.FileShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shares := make([]store.FileShare, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixFileShareUser + userID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed file share index entry")
			}

			var share store.FileShare
			if err := getValue(txn, fileShareKey(id), &share); err != nil {
				return err
			}
			if !share.Revoked {
				shares = append(shares, share)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFileSharesNewestFirst(shares)
	return shares, nil
}

// loadActiveFileShare resolves the active-share index entry and loads the
// share row into out.
func (s *BadgerMetadataStore) loadActiveFileShare(txn *badger.Txn, fileID uuid.UUID, userID string, out *store.FileShare) error {
	idBytes, err := getBytes(txn, fileShareActiveKey(fileID, userID))
	if err != nil {
		return err
	}
	id, err := uuid.Parse(string(idBytes))
	if err != nil {
		return store.NewError(store.ErrStorageInconsistency, "malformed active share index entry")
	}
	return getValue(txn, fileShareKey(id), out)
}

func sortFileSharesNewestFirst(shares []store.FileShare) {
	sort.Slice(shares, func(i, j int) bool {
		return shares[i].CreatedAt.After(shares[j].CreatedAt)
	})
}

// ============================================================================
// Folder Shares
// ============================================================================

// CreateFolderShare persists a folder share under the same conflict
// contract as CreateFileShare.
func (s *BadgerMetadataStore) CreateFolderShare(ctx context.Context, share *store.FolderShare) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if share.ID == uuid.Nil {
		share.ID = uuid.New()
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		activeKey := folderShareActiveKey(share.FolderID, share.SharedWithID)
		taken, err := keyExists(txn, activeKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrConflict, "this folder is already shared with this user")
		}

		if err := setValue(txn, folderShareKey(share.ID), share); err != nil {
			return err
		}
		if err := txn.Set(activeKey, []byte(share.ID.String())); err != nil {
			return err
		}
		return txn.Set(folderShareUserKey(share.SharedWithID, share.ID), nil)
	})
}

// GetFolderShare returns the non-revoked share granting userID access to
// folderID.
func (s *BadgerMetadataStore) GetFolderShare(ctx context.Context, folderID uuid.UUID, userID string) (*store.FolderShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var share store.FolderShare
	err := s.view(func(txn *badger.Txn) error {
		return s.loadActiveFolderShare(txn, folderID, userID, &share)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// RevokeFolderShare flags the active folder share revoked.
func (s *BadgerMetadataStore) RevokeFolderShare(ctx context.Context, folderID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var share store.FolderShare
		if err := s.loadActiveFolderShare(txn, folderID, userID, &share); err != nil {
			return err
		}

		share.Revoked = true
		if err := setValue(txn, folderShareKey(share.ID), &share); err != nil {
			return err
		}
		return txn.Delete(folderShareActiveKey(folderID, userID))
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrShareNotFound
	}
	return err
}

// ListFolderSharesWith returns all non-revoked folder shares granted to
// the user, newest first.
func (s *BadgerMetadataStore) ListFolderSharesWith(ctx context.Context, userID string) ([]store.FolderShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shares := make([]store.FolderShare, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixFolderShareUser + userID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed folder share index entry")
			}

			var share store.FolderShare
			if err := getValue(txn, folderShareKey(id), &share); err != nil {
				return err
			}
			if !share.Revoked {
				shares = append(shares, share)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(shares, func(i, j int) bool {
		return shares[i].CreatedAt.After(shares[j].CreatedAt)
	})
	return shares, nil
}

func (s *BadgerMetadataStore) loadActiveFolderShare(txn *badger.Txn, folderID uuid.UUID, userID string, out *store.FolderShare) error {
	idBytes, err := getBytes(txn, folderShareActiveKey(folderID, userID))
	if err != nil {
		return err
	}
	id, err := uuid.Parse(string(idBytes))
	if err != nil {
		return store.NewError(store.ErrStorageInconsistency, "malformed active share index entry")
	}
	return getValue(txn, folderShareKey(id), out)
}
