package imagefetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchImageSuccess(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	fetcher := New(Config{UserAgent: "harvester-test/1.0", Timeout: 5 * time.Second})
	data, err := fetcher.FetchImage(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data.Body))
	assert.Equal(t, "image/png", data.ContentType)
	assert.Equal(t, "harvester-test/1.0", gotUA.Load())
}

func TestFetchImageHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := New(Config{Timeout: 5 * time.Second})
	_, err := fetcher.FetchImage(context.Background(), server.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchImageDeclaredSizeExceedsCap(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(1024))
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	fetcher := New(Config{Timeout: 5 * time.Second, MaxBytes: 100})
	_, err := fetcher.FetchImage(context.Background(), server.URL+"/big.jpg")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchImageBodyExceedsCap(t *testing.T) {
	t.Parallel()

	// Chunked response carries no Content-Length, so only the bounded read
	// can catch the oversize body.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for i := 0; i < 8; i++ {
			_, _ = w.Write(make([]byte, 64))
			flusher.Flush()
		}
	}))
	defer server.Close()

	fetcher := New(Config{Timeout: 5 * time.Second, MaxBytes: 256})
	_, err := fetcher.FetchImage(context.Background(), server.URL+"/sneaky.jpg")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchImageRetriesTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(2 * time.Second)
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer server.Close()

	fetcher := New(Config{Timeout: 200 * time.Millisecond, MaxAttempts: 2})
	data, err := fetcher.FetchImage(context.Background(), server.URL+"/slow.jpg")
	require.NoError(t, err)
	assert.Equal(t, "late but fine", string(data.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchImageNoRetryOnHTTPError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := New(Config{Timeout: 5 * time.Second, MaxAttempts: 3})
	_, err := fetcher.FetchImage(context.Background(), server.URL+"/forbidden.jpg")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchImageCanceledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := New(Config{Timeout: 5 * time.Second})
	_, err := fetcher.FetchImage(ctx, server.URL+"/img.jpg")
	assert.Error(t, err)
}

func TestRetryPolicyBounds(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(3)
	assert.False(t, p.shouldRetry(nil, 0))
	assert.False(t, p.shouldRetry(context.Canceled, 0))
	assert.False(t, p.shouldRetry(assert.AnError, 0), "non-timeout errors are terminal")

	for attempt := 0; attempt < 5; attempt++ {
		d := p.backoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
