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
// Shared Links
// ============================================================================

// CreateLink persists a shared link and its token and owner index entries.
// Token collisions surface as Conflict so the caller can regenerate.
func (s *BadgerMetadataStore) CreateLink(ctx context.Context, link *store.SharedLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		tokenKey := linkTokenKey(link.Token)
		taken, err := keyExists(txn, tokenKey)
		if err != nil {
			return err
		}
		if taken {
			return store.NewError(store.ErrConflict, "shared link token already exists")
		}

		if err := setValue(txn, linkKey(link.ID), link); err != nil {
			return err
		}
		if err := txn.Set(tokenKey, []byte(link.ID.String())); err != nil {
			return err
		}
		return txn.Set(linkOwnerKey(link.OwnerID, link.ID), nil)
	})
}

// GetLink retrieves a link by id.
func (s *BadgerMetadataStore) GetLink(ctx context.Context, id uuid.UUID) (*store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var link store.SharedLink
	err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, linkKey(id), &link)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetLinkByToken resolves the token index and returns the link only when
// it is still active. Inactive links never authenticate.
func (s *BadgerMetadataStore) GetLinkByToken(ctx context.Context, token string) (*store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var link store.SharedLink
	err := s.view(func(txn *badger.Txn) error {
		idBytes, err := getBytes(txn, linkTokenKey(token))
		if err != nil {
			return err
		}
		id, err := uuid.Parse(string(idBytes))
		if err != nil {
			return store.NewError(store.ErrStorageInconsistency, "malformed link token index entry")
		}
		return getValue(txn, linkKey(id), &link)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, store.ErrLinkNotFound
	}
	return &link, nil
}

// DeleteLink removes the link row and its index entries permanently.
func (s *BadgerMetadataStore) DeleteLink(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var link store.SharedLink
		if err := getValue(txn, linkKey(id), &link); err != nil {
			return err
		}

		if err := txn.Delete(linkTokenKey(link.Token)); err != nil {
			return err
		}
		if err := txn.Delete(linkOwnerKey(link.OwnerID, link.ID)); err != nil {
			return err
		}
		return txn.Delete(linkKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrLinkNotFound
	}
	return err
}

// ListLinks returns the owner's active links, newest first.
func (s *BadgerMetadataStore) ListLinks(ctx context.Context, ownerID string) ([]store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links := make([]store.SharedLink, 0)
	err := s.view(func(txn *badger.Txn) error {
		prefix := []byte(prefixLinkOwner + ownerID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return store.NewError(store.ErrStorageInconsistency, "malformed link owner index entry")
			}

			var link store.SharedLink
			if err := getValue(txn, linkKey(id), &link); err != nil {
				return err
			}
			if link.Active {
				links = append(links, link)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// IncrementLinkViews atomically increments the view counter.
func (s *BadgerMetadataStore) IncrementLinkViews(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var link store.SharedLink
		if err := getValue(txn, linkKey(id), &link); err != nil {
			return err
		}
		link.Views++
		return setValue(txn, linkKey(id), &link)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrLinkNotFound
	}
	return err
}

// IncrementLinkDownloads increments the download counter, enforcing the
// MaxDownloads cap in the same transaction. Badger's conflict detection
// aborts concurrent increments of the same link and the update helper
// retries them, so the counter never passes the cap.
func (s *BadgerMetadataStore) IncrementLinkDownloads(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		var link store.SharedLink
		if err := getValue(txn, linkKey(id), &link); err != nil {
			return err
		}
		if link.MaxDownloads != nil && link.Downloads >= *link.MaxDownloads {
			return store.NewError(store.ErrRateLimited, "you have reached the maximum number of allowed downloads for this file")
		}
		link.Downloads++
		return setValue(txn, linkKey(id), &link)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrLinkNotFound
	}
	return err
}
