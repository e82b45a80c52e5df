package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// ============================================================================
// File Shares
// ============================================================================

func (s *MemoryMetadataStore) CreateFileShare(ctx context.Context, share *store.FileShare) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeFileShare(share.FileID, share.SharedWithID) != nil {
		return store.NewError(store.ErrConflict, "this file is already shared with this user")
	}

	sh := *share
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}
	s.fileShares[sh.ID] = &sh
	return nil
}

func (s *MemoryMetadataStore) GetFileShare(ctx context.Context, fileID uuid.UUID, userID string) (*store.FileShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.activeFileShare(fileID, userID)
	if sh == nil {
		return nil, store.ErrShareNotFound
	}

	out := *sh
	return &out, nil
}

func (s *MemoryMetadataStore) RevokeFileShare(ctx context.Context, fileID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.activeFileShare(fileID, userID)
	if sh == nil {
		return store.ErrShareNotFound
	}

	sh.Revoked = true
	return nil
}

func (s *MemoryMetadataStore) UpdateFileSharePermission(ctx context.Context, fileID uuid.UUID, userID string, permission store.Permission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.activeFileShare(fileID, userID)
	if sh == nil {
		return store.ErrShareNotFound
	}

	sh.Permission = permission
	return nil
}

func (s *MemoryMetadataStore) ListFileSharesWith(ctx context.Context, userID string) ([]store.FileShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.FileShare
	for _, sh := range s.fileShares {
		if sh.SharedWithID == userID && !sh.Revoked {
			out = append(out, *sh)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// activeFileShare returns the single non-revoked share for the pair, or nil.
// Callers must hold mu.
func (s *MemoryMetadataStore) activeFileShare(fileID uuid.UUID, userID string) *store.FileShare {
	for _, sh := range s.fileShares {
		if sh.FileID == fileID && sh.SharedWithID == userID && !sh.Revoked {
			return sh
		}
	}
	return nil
}

// ============================================================================
// Folder Shares
// ============================================================================

func (s *MemoryMetadataStore) CreateFolderShare(ctx context.Context, share *store.FolderShare) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeFolderShare(share.FolderID, share.SharedWithID) != nil {
		return store.NewError(store.ErrConflict, "this folder is already shared with this user")
	}

	sh := *share
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}
	s.folderShares[sh.ID] = &sh
	return nil
}

func (s *MemoryMetadataStore) GetFolderShare(ctx context.Context, folderID uuid.UUID, userID string) (*store.FolderShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.activeFolderShare(folderID, userID)
	if sh == nil {
		return nil, store.ErrShareNotFound
	}

	out := *sh
	return &out, nil
}

func (s *MemoryMetadataStore) RevokeFolderShare(ctx context.Context, folderID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.activeFolderShare(folderID, userID)
	if sh == nil {
		return store.ErrShareNotFound
	}

	sh.Revoked = true
	return nil
}

func (s *MemoryMetadataStore) ListFolderSharesWith(ctx context.Context, userID string) ([]store.FolderShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.FolderShare
	for _, sh := range s.folderShares {
		if sh.SharedWithID == userID && !sh.Revoked {
			out = append(out, *sh)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// activeFolderShare returns the single non-revoked share for the pair, or
// nil. Callers must hold mu.
func (s *MemoryMetadataStore) activeFolderShare(folderID uuid.UUID, userID string) *store.FolderShare {
	for _, sh := range s.folderShares {
		if sh.FolderID == folderID && sh.SharedWithID == userID && !sh.Revoked {
			return sh
		}
	}
	return nil
}
