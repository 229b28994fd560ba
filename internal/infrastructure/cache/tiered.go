package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// TieredResolutionCache checks a near cache before a shared far cache.
// Far hits are copied into the near cache.
type TieredResolutionCache struct {
	near ResolutionCache
	far  ResolutionCache
}

// NewTieredResolutionCache layers near (usually in-process) over far (usually Redis).
func NewTieredResolutionCache(near, far ResolutionCache) *TieredResolutionCache {
	return &TieredResolutionCache{near: near, far: far}
}

func (c *TieredResolutionCache) Get(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	video, err := c.near.Get(ctx, sourceURL)
	if err == nil && video != nil {
		return video, nil
	}

	video, err = c.far.Get(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, nil
	}

	if err := c.near.Set(ctx, sourceURL, video); err != nil {
		slog.Warn("failed to promote resolution to near cache",
			"source_url", sourceURL,
			"error", err,
		)
	}
	return video, nil
}

// Set writes both tiers. A failure in one tier does not stop the other.
func (c *TieredResolutionCache) Set(ctx context.Context, sourceURL string, video *model.ResolvedVideo) error {
	return errors.Join(
		c.near.Set(ctx, sourceURL, video),
		c.far.Set(ctx, sourceURL, video),
	)
}
