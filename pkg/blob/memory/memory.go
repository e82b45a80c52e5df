package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/skyvault/skyvault/pkg/blob"
)

// MemoryBlobStore implements blob.BlobStore using in-memory storage.
//
// All content lives in a map guarded by an RWMutex. Designed for tests and
// ephemeral deployments; data is lost on restart and bounded by RAM.
// Content is copied on write and served through a bytes.Reader on read, so
// caller-owned buffers never alias store memory.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]entry
}

type entry struct {
	data        []byte
	contentType string
}

// New creates an empty in-memory blob store.
func New() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string]entry),
	}
}

// Put stores the content under key, overwriting any existing blob.
func (s *MemoryBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content for blob %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = entry{data: data, contentType: contentType}
	return nil
}

// Get returns a reader over a copy-safe view of the blob.
func (s *MemoryBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	e, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
	}

	return io.NopCloser(bytes.NewReader(e.data)), e.contentType, nil
}

// Delete removes the blob. Missing keys are ignored.
func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Exists reports whether a blob is stored under the key.
func (s *MemoryBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[key]
	return ok, nil
}

// Len returns the number of stored blobs. Test helper.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
