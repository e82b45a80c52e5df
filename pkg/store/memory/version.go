package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

func cloneVersion(v *store.FileVersion) *store.FileVersion {
	out := *v
	out.DeletedAt = cloneTimePtr(v.DeletedAt)
	return &out
}

func (s *MemoryMetadataStore) CreateVersion(ctx context.Context, version *store.FileVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := cloneVersion(version)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.versions[v.ID] = v
	return nil
}

func (s *MemoryMetadataStore) GetVersion(ctx context.Context, id uuid.UUID) (*store.FileVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, store.ErrVersionNotFound
	}

	return cloneVersion(v), nil
}

func (s *MemoryMetadataStore) ListVersions(ctx context.Context, fileID uuid.UUID) ([]store.FileVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.FileVersion
	for _, v := range s.versions {
		if v.FileID == fileID && !v.Deleted {
			out = append(out, *cloneVersion(v))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryMetadataStore) ListAllVersions(ctx context.Context, fileID uuid.UUID) ([]store.FileVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.FileVersion
	for _, v := range s.versions {
		if v.FileID == fileID {
			out = append(out, *cloneVersion(v))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryMetadataStore) SoftDeleteVersion(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok || v.Deleted {
		return store.ErrVersionNotFound
	}

	deletedAt := at.UTC()
	v.Deleted = true
	v.DeletedAt = &deletedAt
	return nil
}

func (s *MemoryMetadataStore) UpdateVersionDescription(ctx context.Context, id uuid.UUID, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok || v.Deleted {
		return store.ErrVersionNotFound
	}

	v.Description = description
	return nil
}
