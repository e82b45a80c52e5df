package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/blob"
)

func TestPutGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key1", strings.NewReader("hello"), "text/plain"))

	r, contentType, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", contentType)
}

func TestPutOverwrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key1", strings.NewReader("old"), "text/plain"))
	require.NoError(t, s.Put(ctx, "key1", strings.NewReader("new"), "application/json"))

	r, contentType, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, 1, s.Len())
}

func TestGetMissing(t *testing.T) {
	s := New()

	_, _, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key1", strings.NewReader("hello"), "text/plain"))
	require.NoError(t, s.Delete(ctx, "key1"))

	exists, err := s.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "key1"))
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Put(ctx, "key1", strings.NewReader("x"), "text/plain"))
	_, _, err := s.Get(ctx, "key1")
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Put(ctx, "shared", strings.NewReader("data"), "text/plain"))
			if r, _, err := s.Get(ctx, "shared"); err == nil {
				r.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
}
