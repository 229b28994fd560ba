package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// ResolveOutput contains the result of resolving a source URL.
type ResolveOutput struct {
	Filename    string
	DownloadURL string
	// Thumbnail is only set when this call created the stored record.
	Thumbnail string
	Created   bool
}

// VideoService defines the resolve workflow and the reporting operations on stored videos.
type VideoService interface {
	// Resolve resolves sourceURL and stores the result the first time its filename is seen.
	// A filename that is already stored yields the previously known download URL.
	Resolve(ctx context.Context, sourceURL string) (*ResolveOutput, error)

	// Stats reports record count, aggregate payload size and up to limit newest records.
	// A non-positive limit selects the default; larger limits are clamped.
	Stats(ctx context.Context, limit int) (*model.StoreStats, error)

	// Health checks that the store is reachable.
	Health(ctx context.Context) error
}

// VideoServiceConfig holds configuration for VideoService.
type VideoServiceConfig struct {
	DefaultListLimit int
	MaxListLimit     int
}

// DefaultVideoServiceConfig returns the default configuration.
func DefaultVideoServiceConfig() VideoServiceConfig {
	return VideoServiceConfig{
		DefaultListLimit: 100,
		MaxListLimit:     1000,
	}
}

type videoService struct {
	resolver  MetadataResolver
	store     repository.VideoStore
	publisher repository.EventPublisher

	defaultListLimit int
	maxListLimit     int
}

// NewVideoService creates a new VideoService instance.
// publisher may be nil, in which case no resolution events are sent.
func NewVideoService(
	resolver MetadataResolver,
	store repository.VideoStore,
	publisher repository.EventPublisher,
	cfg VideoServiceConfig,
) VideoService {
	return &videoService{
		resolver:         resolver,
		store:            store,
		publisher:        publisher,
		defaultListLimit: cfg.DefaultListLimit,
		maxListLimit:     cfg.MaxListLimit,
	}
}

// Resolve runs resolver lookup, then the store check, then the insert.
func (s *videoService) Resolve(ctx context.Context, sourceURL string) (*ResolveOutput, error) {
	out, err := s.resolve(ctx, sourceURL)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(metrics.ResolutionFailed).Inc()
		return nil, err
	}

	if out.Created {
		metrics.ResolutionsTotal.WithLabelValues(metrics.ResolutionCreated).Inc()
	} else {
		metrics.ResolutionsTotal.WithLabelValues(metrics.ResolutionExisting).Inc()
	}
	return out, nil
}

func (s *videoService) resolve(ctx context.Context, sourceURL string) (*ResolveOutput, error) {
	resolved, err := s.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	primary := resolved.Primary()

	existing, err := s.store.FindByFilename(ctx, primary.Name)
	switch {
	case err == nil:
		return existingOutput(existing, primary), nil
	case !errors.Is(err, repository.ErrVideoNotFound):
		return nil, fmt.Errorf("find video: %w", err)
	}

	record := model.NewStoredVideo(sourceURL, resolved)
	inserted, err := s.store.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	if !inserted {
		// A concurrent first resolution stored the filename between our lookup and insert.
		existing, err := s.store.FindByFilename(ctx, primary.Name)
		if err != nil {
			slog.Warn("failed to reload concurrently stored video",
				slog.String("filename", primary.Name),
				slog.String("error", err.Error()),
			)
			return &ResolveOutput{Filename: primary.Name, DownloadURL: primary.Video}, nil
		}
		return existingOutput(existing, primary), nil
	}

	s.publishResolved(ctx, record)

	return &ResolveOutput{
		Filename:    primary.Name,
		DownloadURL: primary.Video,
		Thumbnail:   primary.Thumbnail,
		Created:     true,
	}, nil
}

// existingOutput prefers the stored download URL. Records written before the
// URL was persisted fall back to the fresh resolution.
func existingOutput(existing *model.StoredVideo, primary model.VideoVariant) *ResolveOutput {
	downloadURL := existing.DownloadURL
	if downloadURL == "" {
		downloadURL = primary.Video
	}
	return &ResolveOutput{
		Filename:    existing.Filename,
		DownloadURL: downloadURL,
	}
}

// publishResolved announces a new record. Failures never fail the request.
func (s *videoService) publishResolved(ctx context.Context, record *model.StoredVideo) {
	if s.publisher == nil {
		return
	}

	event := repository.VideoResolvedEvent{
		Filename:    record.Filename,
		SourceURL:   record.SourceURL,
		DownloadURL: record.DownloadURL,
		ResolvedAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishVideoResolved(ctx, event); err != nil {
		slog.Warn("failed to publish video resolved event",
			slog.String("filename", record.Filename),
			slog.String("error", err.Error()),
		)
	}
}

// Stats gathers the administrative report.
func (s *videoService) Stats(ctx context.Context, limit int) (*model.StoreStats, error) {
	if limit <= 0 {
		limit = s.defaultListLimit
	}
	if limit > s.maxListLimit {
		limit = s.maxListLimit
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}

	size, err := s.store.TotalPayloadSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum payload size: %w", err)
	}

	videos, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	return &model.StoreStats{
		TotalFiles:     total,
		TotalSizeBytes: size,
		Videos:         videos,
	}, nil
}

// Health pings the store.
func (s *videoService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}
