package cache

import (
	"context"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// ResolutionCache stores resolver results keyed by the decoded source URL.
// Entries expire after a TTL fixed when the cache is constructed.
type ResolutionCache interface {
	// Get retrieves a resolution by source URL.
	// Returns nil, nil if the entry is absent or expired (cache miss).
	Get(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)

	// Set stores a resolution, replacing any previous entry for sourceURL.
	Set(ctx context.Context, sourceURL string, video *model.ResolvedVideo) error
}
