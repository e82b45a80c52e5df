package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// MemoryMetadataStore implements store.MetadataStore using in-memory storage.
//
// This implementation backs the full metadata contract with plain maps and
// is suitable for:
//   - Testing and development environments
//   - Ephemeral deployments where persistence is not required
//
// Thread Safety:
// All operations are protected by a single mutex (mu), making the store
// safe for concurrent access from multiple goroutines. The coarse lock is
// also what makes the store's atomicity contracts trivial to honor: the
// conditional download-counter increment and the name-uniqueness check run
// entirely inside one critical section.
//
// Storage Model:
// Entity maps keyed by id, plus secondary indexes for the two uniqueness
// constraints and the token lookup:
//
//   - fileNames:   (owner, folder, name) → file id, non-deleted files only
//   - folderNames: (owner, parent, lower(name)) → folder id
//   - linkTokens:  token → link id
//
// Entities are copied on the way in and out so callers never alias store
// memory.
type MemoryMetadataStore struct {
	mu sync.Mutex

	users   map[string]*store.User
	folders map[uuid.UUID]*store.Folder
	files   map[uuid.UUID]*store.File

	versions     map[uuid.UUID]*store.FileVersion
	fileShares   map[uuid.UUID]*store.FileShare
	folderShares map[uuid.UUID]*store.FolderShare
	links        map[uuid.UUID]*store.SharedLink

	fileNames   map[string]uuid.UUID
	folderNames map[string]uuid.UUID
	linkTokens  map[string]uuid.UUID
}

// New creates an empty in-memory metadata store.
func New() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		users:        make(map[string]*store.User),
		folders:      make(map[uuid.UUID]*store.Folder),
		files:        make(map[uuid.UUID]*store.File),
		versions:     make(map[uuid.UUID]*store.FileVersion),
		fileShares:   make(map[uuid.UUID]*store.FileShare),
		folderShares: make(map[uuid.UUID]*store.FolderShare),
		links:        make(map[uuid.UUID]*store.SharedLink),
		fileNames:    make(map[string]uuid.UUID),
		folderNames:  make(map[string]uuid.UUID),
		linkTokens:   make(map[string]uuid.UUID),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

// ============================================================================
// Users
// ============================================================================

func (s *MemoryMetadataStore) CreateUser(ctx context.Context, user *store.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return store.NewError(store.ErrConflict, "user already exists")
	}

	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = &u
	return nil
}

func (s *MemoryMetadataStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}

	out := *u
	return &out, nil
}

func (s *MemoryMetadataStore) UpdateUserPlan(ctx context.Context, id string, plan store.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}

	u.Plan = plan
	return nil
}

// ============================================================================
// Index key helpers
// ============================================================================

// fileNameKey builds the uniqueness key for the non-deleted file identity
// triple. File names are matched exactly.
func fileNameKey(ownerID string, folderID *uuid.UUID, name string) string {
	folder := "-"
	if folderID != nil {
		folder = folderID.String()
	}
	return ownerID + "|" + folder + "|" + name
}

// folderNameKey builds the sibling-uniqueness key for folders. Folder names
// are matched case-insensitively.
func folderNameKey(ownerID string, parentID *uuid.UUID, name string) string {
	parent := "-"
	if parentID != nil {
		parent = parentID.String()
	}
	return ownerID + "|" + parent + "|" + strings.ToLower(name)
}

func cloneUUIDPtr(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneIntPtr(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
