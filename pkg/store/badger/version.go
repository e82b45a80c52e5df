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
// File Versions
// ============================================================================

// CreateVersion persists a version snapshot and its by-file index entry.
func (s *BadgerMetadataStore) CreateVersion(ctx context.Context, version *store.FileVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		if err := setValue(txn, versionKey(version.ID), version); err != nil {
			return err
		}
		return txn.Set(versionByFileKey(version.FileID, version.ID), nil)
	})
}

// GetVersion retrieves a version by id, soft-deleted versions included.
func (s *BadgerMetadataStore) GetVersion(ctx context.Context, id uuid.UUID) (*store.FileVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var version store.FileVersion
	err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, versionKey(id), &version)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ListVersions returns the file's non-soft-deleted versions, newest first.
func (s *BadgerMetadataStore) ListVersions(ctx context.Context, fileID uuid.UUID) ([]store.FileVersion, error) {
	return s.listVersions(ctx, fileID, false)
}

// ListAllVersions returns every version row of the file, soft-deleted rows
// included.
func (s *BadgerMetadataStore) ListAllVersions(ctx context.Context, fileID uuid.UUID) ([]store.FileVersion, error) {
	return s.listVersions(ctx, fileID, true)
}

func (s *BadgerMetadataStore) listVersions(ctx context.Context, fileID uuid.UUID, includeDeleted bool) ([]store.FileVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	versions := make([]store.FileVersion, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixVersionByFile + fileID.String() + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed version index entry")
			}

			var version store.FileVersion
			if err := getValue(txn, versionKey(id), &version); err != nil {
				return err
			}
			if includeDeleted || !version.Deleted {
				versions = append(versions, version)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions, nil
}

// SoftDeleteVersion flags the version deleted. The row and its blob stay
// in place.
func (s *BadgerMetadataStore) SoftDeleteVersion(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var version store.FileVersion
		if err := getValue(txn, versionKey(id), &version); err != nil {
			return err
		}
		at = at.UTC()
		version.Deleted = true
		version.DeletedAt = &at
		return setValue(txn, versionKey(id), &version)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrVersionNotFound
	}
	return err
}

// UpdateVersionDescription replaces the version's free-text description.
func (s *BadgerMetadataStore) UpdateVersionDescription(ctx context.Context, id uuid.UUID, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var version store.FileVersion
		if err := getValue(txn, versionKey(id), &version); err != nil {
			return err
		}
		version.Description = description
		return setValue(txn, versionKey(id), &version)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrVersionNotFound
	}
	return err
}
