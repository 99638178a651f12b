// Package imagefetcher retrieves raw image payloads for candidate URLs.
package imagefetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// ErrTooLarge marks a payload rejected by the configured size cap.
var ErrTooLarge = errors.New("image exceeds size limit")

// Config controls fetch behavior.
type Config struct {
	UserAgent string
	// Timeout bounds each request attempt.
	Timeout time.Duration
	// MaxBytes caps a single payload; 0 disables the cap.
	MaxBytes int64
	// MaxAttempts bounds retries of transient timeout errors. Values below 1
	// are treated as 1.
	MaxAttempts int
}

// Fetcher implements harvest.ImageFetcher over a pooled HTTP transport.
// Inline data URIs are decoded locally and never touch the network.
type Fetcher struct {
	cfg    Config
	client *http.Client
	retry  *retryPolicy
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		},
		retry: newRetryPolicy(cfg.MaxAttempts),
	}
}

// FetchImage retrieves the bytes behind one candidate URL.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (harvest.ImageData, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURI(rawURL, f.cfg.MaxBytes)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		data, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !f.retry.shouldRetry(err, attempt) {
			return harvest.ImageData{}, lastErr
		}
		select {
		case <-ctx.Done():
			return harvest.ImageData{}, fmt.Errorf("fetch image canceled: %w", ctx.Err())
		case <-time.After(f.retry.backoff(attempt)):
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (harvest.ImageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return harvest.ImageData{}, fmt.Errorf("build image request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return harvest.ImageData{}, fmt.Errorf("fetch image: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return harvest.ImageData{}, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	if f.cfg.MaxBytes > 0 && resp.ContentLength > f.cfg.MaxBytes {
		return harvest.ImageData{}, fmt.Errorf("declared size %d: %w", resp.ContentLength, ErrTooLarge)
	}

	body, err := readCapped(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return harvest.ImageData{}, err
	}
	return harvest.ImageData{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// readCapped reads the body, enforcing the cap even when Content-Length lied
// or was absent. Reading one byte past the cap detects oversize payloads
// without buffering them whole.
func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read image body: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("body exceeds %d bytes: %w", maxBytes, ErrTooLarge)
	}
	return body, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}
