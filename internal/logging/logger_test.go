// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"testing"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestNewWithFileWritesLogFile verifies the optional file sink receives output.
func TestNewWithFileWritesLogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := NewWithFile(false, path)
	if err != nil {
		t.Fatalf("NewWithFile() error = %v", err)
	}
	logger.Info("file sink ready")
	logger.Sync() //nolint:errcheck // best-effort flush

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain output")
	}
}

// TestNewWithFileEmptyPathFallsBack ensures an empty path behaves like New.
func TestNewWithFileEmptyPathFallsBack(t *testing.T) {
	t.Parallel()

	logger, err := NewWithFile(false, "")
	if err != nil {
		t.Fatalf("NewWithFile(\"\") error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
}
