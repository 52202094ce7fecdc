// Package storage provides the temp-file workspace used for per-chunk audio
// clips and intermediate tracks, plus optional publication of finished audio
// files to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary files and publication.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads a finished audio file and returns its public URL.
	// Returns ErrPublishNotConfigured when no publication target is set up.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
