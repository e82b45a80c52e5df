// Package badger provides a BadgerDB-backed implementation of the
// store.MetadataStore interface. All metadata (users, folders, files,
// versions, shares and shared links) is persisted in a single embedded
// key-value database; see keys.go for the namespace layout.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/skyvault/skyvault/pkg/store"
)

// Config holds the options for opening a Badger-backed metadata store.
type Config struct {
	// Dir is the directory where database files are stored. Ignored when
	// InMemory is set.
	Dir string `mapstructure:"dir" validate:"required_unless=InMemory true"`

	// InMemory runs the database entirely in memory. Data is lost on
	// close; intended for tests.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites forces an fsync after every write transaction.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// BadgerMetadataStore implements store.MetadataStore on top of BadgerDB.
type BadgerMetadataStore struct {
	db *badger.DB
}

var _ store.MetadataStore = (*BadgerMetadataStore)(nil)

// New opens (or creates) the database described by cfg.
func New(cfg Config) (*BadgerMetadataStore, error) {
	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerMetadataStore{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *BadgerMetadataStore) Close() error {
	return s.db.Close()
}

// RunValueLogGC triggers one round of Badger's value log garbage
// collection. Callers typically run this periodically; a return of
// badger.ErrNoRewrite just means there was nothing to reclaim.
func (s *BadgerMetadataStore) RunValueLogGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// update runs fn in a read-write transaction, retrying on transactional
// conflicts. Conflicts are expected under concurrent access to the same
// keys (e.g. simultaneous downloads racing on a link counter) and are
// safe to retry because every mutation re-reads its inputs.
func (s *BadgerMetadataStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// view runs fn in a read-only transaction.
func (s *BadgerMetadataStore) view(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

// ============================================================================
// Users
// ============================================================================

// CreateUser persists a new user record.
func (s *BadgerMetadataStore) CreateUser(ctx context.Context, user *store.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		key := userKey(user.ID)
		exists, err := keyExists(txn, key)
		if err != nil {
			return err
		}
		if exists {
			return store.NewError(store.ErrConflict, "user already exists")
		}
		return setValue(txn, key, user)
	})
}

// GetUser retrieves a user by id.
func (s *BadgerMetadataStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user store.User
	err := s.view(func(txn *badger.Txn) error {
		return getValue(txn, userKey(id), &user)
	})
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserPlan changes the subscription plan of an existing user.
func (s *BadgerMetadataStore) UpdateUserPlan(ctx context.Context, id string, plan store.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		key := userKey(id)
		var user store.User
		if err := getValue(txn, key, &user); err != nil {
			return err
		}
		user.Plan = plan
		return setValue(txn, key, &user)
	})
	if err == badger.ErrKeyNotFound {
		return store.ErrUserNotFound
	}
	return err
}
