package usecase

import (
	"context"
	"log/slog"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/cache"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// MetadataResolver resolves source URLs to download metadata.
type MetadataResolver interface {
	// Resolve returns the resolver result for sourceURL.
	// A cached result is returned without contacting the upstream resolver.
	Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)
}

// cachedResolver puts a ResolutionCache in front of the upstream resolver.
type cachedResolver struct {
	upstream repository.Resolver
	cache    cache.ResolutionCache
	sfGroup  singleflight.Group
}

// NewMetadataResolver creates a MetadataResolver backed by resolutionCache.
func NewMetadataResolver(upstream repository.Resolver, resolutionCache cache.ResolutionCache) MetadataResolver {
	return &cachedResolver{
		upstream: upstream,
		cache:    resolutionCache,
	}
}

// Resolve coalesces concurrent calls for the same URL so that at most one
// upstream request is in flight per URL.
func (r *cachedResolver) Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	// Shared callers must not fail because the first caller went away.
	// The upstream client carries its own deadline.
	sfCtx := context.WithoutCancel(ctx)

	result, err, shared := r.sfGroup.Do(sourceURL, func() (any, error) {
		return r.resolveWithCache(sfCtx, sourceURL)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}
	return result.(*model.ResolvedVideo), nil
}

// resolveWithCache implements the cache-aside pattern.
func (r *cachedResolver) resolveWithCache(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	video, err := r.cache.Get(ctx, sourceURL)
	if err != nil {
		slog.Warn("resolution cache get failed, calling upstream",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()),
		)
	}
	if video != nil {
		return video, nil
	}

	video, err = r.upstream.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, sourceURL, video); err != nil {
		slog.Warn("failed to cache resolution",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()),
		)
	}

	return video, nil
}
