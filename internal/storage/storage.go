// Package storage writes output files to local disk and, when configured,
// publishes them to S3-compatible object storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for output and scratch file handling.
type Storage interface {
	// WriteFile atomically writes data to path, creating parent directories.
	WriteFile(ctx context.Context, path string, data io.Reader) error

	// TempPath returns a fresh path inside the scratch directory.
	// The name parameter is used as a hint for the filename.
	TempPath(name string) (string, error)

	// CleanupTemp removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload copies the local file at path to object storage under key and
	// returns its URL. Returns ErrS3NotConfigured if S3 is not configured.
	Upload(ctx context.Context, key, path string) (url string, err error)

	// UploadEnabled reports whether Upload can succeed.
	UploadEnabled() bool
}
