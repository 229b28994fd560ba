package repository

import (
	"context"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// VideoStore defines persistence for resolved videos, keyed by filename.
// Implementations should be provided by the infrastructure layer (e.g., MongoDB, PostgreSQL).
// Connectivity failures are wrapped with model.ErrStorageUnavailable.
type VideoStore interface {
	// FindByFilename retrieves the record stored for filename.
	// Returns nil and ErrVideoNotFound if no record exists.
	FindByFilename(ctx context.Context, filename string) (*model.StoredVideo, error)

	// InsertIfAbsent persists video unless a record with the same filename exists.
	// Reports false, nil when another record already owns the filename.
	InsertIfAbsent(ctx context.Context, video *model.StoredVideo) (bool, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// TotalPayloadSize sums the character length of every stored download URL.
	// Records without a download URL contribute zero.
	TotalPayloadSize(ctx context.Context) (int64, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]model.VideoSummary, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
