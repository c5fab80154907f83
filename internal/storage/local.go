package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where scratch files are stored.
// If tempDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "easylecture")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the scratch directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// WriteFile writes data to a temporary file next to path and renames it
// into place once fully written.
func (s *LocalStorage) WriteFile(ctx context.Context, path string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(fileName, path); err != nil {
		_ = os.Remove(fileName)
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

// TempPath reserves a unique file name in the scratch directory.
func (s *LocalStorage) TempPath(name string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "*_"+name)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// CleanupTemp removes the specified scratch files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}

// UploadEnabled returns false.
func (s *LocalStorage) UploadEnabled() bool {
	return false
}

var _ Storage = (*LocalStorage)(nil)
