package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

func cloneLink(l *store.SharedLink) *store.SharedLink {
	out := *l
	out.MaxDownloads = cloneIntPtr(l.MaxDownloads)
	return &out
}

func (s *MemoryMetadataStore) CreateLink(ctx context.Context, link *store.SharedLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.linkTokens[link.Token]; ok {
		return store.NewError(store.ErrConflict, "shared link token already exists")
	}

	l := cloneLink(link)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.links[l.ID] = l
	s.linkTokens[l.Token] = l.ID
	return nil
}

func (s *MemoryMetadataStore) GetLink(ctx context.Context, id uuid.UUID) (*store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return nil, store.ErrLinkNotFound
	}

	return cloneLink(l), nil
}

func (s *MemoryMetadataStore) GetLinkByToken(ctx context.Context, token string) (*store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.linkTokens[token]
	if !ok {
		return nil, store.ErrLinkNotFound
	}

	l := s.links[id]
	if !l.Active {
		return nil, store.ErrLinkNotFound
	}

	return cloneLink(l), nil
}

func (s *MemoryMetadataStore) DeleteLink(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return store.ErrLinkNotFound
	}

	delete(s.linkTokens, l.Token)
	delete(s.links, id)
	return nil
}

func (s *MemoryMetadataStore) ListLinks(ctx context.Context, ownerID string) ([]store.SharedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.SharedLink
	for _, l := range s.links {
		if l.OwnerID == ownerID && l.Active {
			out = append(out, *cloneLink(l))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryMetadataStore) IncrementLinkViews(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return store.ErrLinkNotFound
	}

	l.Views++
	return nil
}

// IncrementLinkDownloads performs the cap check and the increment inside a
// single critical section, so the counter can never pass MaxDownloads no
// matter how many callers race.
func (s *MemoryMetadataStore) IncrementLinkDownloads(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return store.ErrLinkNotFound
	}

	if l.MaxDownloads != nil && l.Downloads >= *l.MaxDownloads {
		return store.NewError(store.ErrRateLimited, "you have reached the maximum number of allowed downloads for this file")
	}

	l.Downloads++
	return nil
}
