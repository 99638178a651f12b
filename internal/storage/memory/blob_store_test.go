package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUniqueCopiesData(t *testing.T) {
	t.Parallel()

	store := NewStore()
	payload := []byte("content")
	path, size, err := store.SaveUnique(context.Background(), "memory://example.com", "photo.jpg", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory:/example.com/photo.jpg", path)
	assert.Equal(t, int64(len(payload)), size)

	payload[0] = 'X'
	stored, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, "content", string(stored))
}

func TestSaveUniqueNumbersCollisions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	dir, err := store.EnsureLayout(context.Background(), "example.com")
	require.NoError(t, err)

	first, _, err := store.SaveUnique(context.Background(), dir, "img.png", []byte("a"))
	require.NoError(t, err)
	second, _, err := store.SaveUnique(context.Background(), dir, "img.png", []byte("b"))
	require.NoError(t, err)
	third, _, err := store.SaveUnique(context.Background(), dir, "img.png", []byte("c"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.Equal(t, 3, store.Len())
}

func TestSaveUniqueConcurrent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	const n = 20
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := store.SaveUnique(context.Background(), "memory://x", "img.png", []byte{byte(i)})
			require.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, p := range paths {
		seen[p] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestWriteReportReplaces(t *testing.T) {
	t.Parallel()

	store := NewStore()
	path, err := store.WriteReport(context.Background(), "memory://example.com", "download_report.txt", []byte("one"))
	require.NoError(t, err)
	_, err = store.WriteReport(context.Background(), "memory://example.com", "download_report.txt", []byte("two"))
	require.NoError(t, err)

	content, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, "two", string(content))
	assert.Equal(t, 1, store.Len())
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.EnsureLayout(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = store.SaveUnique(ctx, "d", "n", nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.WriteReport(ctx, "d", "n", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
