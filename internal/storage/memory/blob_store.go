// Package memory stores harvested images in-memory for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// Store keeps saved payloads in a map keyed by pseudo path. It mirrors the
// uniqueness semantics of the filesystem store so pipeline tests can assert
// on allocation behavior without touching disk.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates an empty in-memory image store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// EnsureLayout registers the per-site directory and returns its pseudo path.
func (s *Store) EnsureLayout(ctx context.Context, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ensure layout canceled: %w", err)
	}
	if strings.TrimSpace(domain) == "" {
		return "", errors.New("domain is required")
	}
	return "memory://" + domain, nil
}

// SaveUnique stores data under dir, appending numbered variants on name
// collisions just like the filesystem store.
func (s *Store) SaveUnique(ctx context.Context, dir string, name string, data []byte) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("save canceled: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", 0, errors.New("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := name
	for attempt := 1; ; attempt++ {
		key := path.Join(dir, candidate)
		if _, taken := s.data[key]; !taken {
			s.data[key] = append([]byte(nil), data...)
			return key, int64(len(data)), nil
		}
		candidate = harvest.NumberedVariant(name, attempt)
	}
}

// WriteReport stores a run artifact under dir, replacing any previous one.
func (s *Store) WriteReport(ctx context.Context, dir string, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write report canceled: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name is required")
	}
	key := path.Join(dir, name)
	s.mu.Lock()
	s.data[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return key, nil
}

// Get returns the stored payload for a path, if present.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports how many objects the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
