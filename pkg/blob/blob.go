package blob

import (
	"context"
	"errors"
	"io"
)

// ============================================================================
// BlobStore Interface
// ============================================================================

// BlobStore provides opaque, key-addressed byte storage for file content.
//
// The blob store manages only raw bytes plus a content type. It does NOT
// manage ownership, access control or the file hierarchy; all of that lives
// in the metadata store, which references blobs by key.
//
// Keys are caller-generated opaque strings (random UUIDs in practice). The
// store never interprets them beyond namespacing.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same key are last-write-wins.
type BlobStore interface {
	// Put stores the content read from r under the given key, overwriting
	// any existing blob. The write must complete (or fail) before Put
	// returns so that callers can safely persist metadata afterwards.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get returns a reader for the blob along with its content type. The
	// caller must close the reader. Returns ErrNotFound if the key has no
	// blob.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ErrNotFound indicates the requested blob does not exist.
//
// The engines treat this as a storage inconsistency when the metadata store
// referenced the key: the row claims content that the blob store cannot
// produce.
//
// Implementations wrap it with context:
//
//	return nil, "", fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
var ErrNotFound = errors.New("blob not found")
