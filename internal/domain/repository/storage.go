package repository

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for the media archive.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// Upload streams an object into storage without knowing its size up front.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Exists checks if an object exists in the storage.
	Exists(ctx context.Context, key string) (bool, error)
}
