// Package local implements the filesystem-backed image store.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// maxCollisionAttempts bounds the numbered-variant retry loop so a hostile
// directory cannot make SaveUnique spin forever.
const maxCollisionAttempts = 1000

// Config captures the parameters for the local image store.
type Config struct {
	// BaseDir is the root directory runs write into.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes images and run artifacts to the local filesystem. File
// creation uses O_EXCL, so concurrent workers racing on the same name each
// end up with a distinct path.
type Store struct {
	baseDir string
}

// New creates a Store rooted at cfg.BaseDir, creating the directory when
// missing and probing that it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path %q is not a directory", cfg.BaseDir)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up writability probe: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// EnsureLayout creates the per-site directory under the base directory and
// returns its path.
func (s *Store) EnsureLayout(ctx context.Context, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ensure layout canceled: %w", err)
	}
	dir, err := s.resolve(s.baseDir, domain)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return dir, nil
}

// SaveUnique writes data under dir with the requested name, appending a
// numbered variant when the name is taken. Returns the final path and the
// number of bytes written.
func (s *Store) SaveUnique(ctx context.Context, dir string, name string, data []byte) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, fmt.Errorf("save canceled: %w", err)
	}
	candidate := name
	for attempt := 1; ; attempt++ {
		path, err := s.resolve(dir, candidate)
		if err != nil {
			return "", 0, err
		}
		written, err := writeExclusive(path, data)
		if err == nil {
			return path, written, nil
		}
		if !os.IsExist(err) {
			return "", 0, fmt.Errorf("write image file: %w", err)
		}
		if attempt >= maxCollisionAttempts {
			return "", 0, fmt.Errorf("no free filename for %q after %d attempts", name, attempt)
		}
		candidate = harvest.NumberedVariant(name, attempt)
	}
}

// WriteReport writes a run artifact under dir, replacing any previous one.
func (s *Store) WriteReport(ctx context.Context, dir string, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write report canceled: %w", err)
	}
	path, err := s.resolve(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}

// resolve joins name onto root and rejects any result that escapes root.
func (s *Store) resolve(root, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name is required")
	}
	cleanRoot := filepath.Clean(root)
	full := filepath.Clean(filepath.Join(cleanRoot, name))
	if !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected in %q", name)
	}
	return full, nil
}

// writeExclusive creates the file with O_EXCL so a concurrent worker racing
// on the same name loses with os.ErrExist instead of clobbering the file.
func writeExclusive(path string, data []byte) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	n, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(path)
		return 0, writeErr
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return 0, closeErr
	}
	return int64(n), nil
}
