package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/hszk-dev/vidproxy/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default number of attempts before an archive event is dropped.
	DefaultMaxRetries = 3

	archivePrefix      = "archive"
	defaultContentType = "application/octet-stream"
)

// ArchiveServiceConfig holds configuration for ArchiveService.
type ArchiveServiceConfig struct {
	// MaxRetries is the retry count at which an event is dropped instead of processed.
	MaxRetries int
}

// DefaultArchiveServiceConfig returns the default configuration.
func DefaultArchiveServiceConfig() ArchiveServiceConfig {
	return ArchiveServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// ArchiveService copies newly resolved media into object storage.
type ArchiveService interface {
	// ProcessEvent archives the media announced by event.
	// Returns nil on success, when the object already exists, or when the
	// event has used up its retries. Returns an error for failures worth retrying.
	ProcessEvent(ctx context.Context, event repository.VideoResolvedEvent) error
}

type archiveService struct {
	source  repository.MediaSource
	storage repository.ObjectStorage

	maxRetries int
}

// NewArchiveService creates a new ArchiveService instance.
func NewArchiveService(
	source repository.MediaSource,
	storage repository.ObjectStorage,
	cfg ArchiveServiceConfig,
) ArchiveService {
	return &archiveService{
		source:     source,
		storage:    storage,
		maxRetries: cfg.MaxRetries,
	}
}

func (s *archiveService) ProcessEvent(ctx context.Context, event repository.VideoResolvedEvent) error {
	if event.RetryCount >= s.maxRetries {
		slog.Error("dropping archive event after max retries",
			slog.String("filename", event.Filename),
			slog.Int("retry_count", event.RetryCount),
		)
		return nil
	}

	key, err := archiveKey(event.Filename)
	if err != nil {
		slog.Error("dropping archive event", slog.String("error", err.Error()))
		return nil
	}

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check archive object: %w", err)
	}
	if exists {
		slog.Info("media already archived", slog.String("key", key))
		return nil
	}

	stream, err := s.source.Open(ctx, event.DownloadURL)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer func() { _ = stream.Close() }()

	contentType := stream.ContentType()
	if contentType == "" {
		contentType = defaultContentType
	}

	if err := s.storage.Upload(ctx, key, &streamReader{stream: stream}, contentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	slog.Info("media archived",
		slog.String("key", key),
		slog.Int64("bytes", stream.Relayed()),
	)
	return nil
}

// archiveKey builds the object key for filename.
// Format: archive/{filename}
func archiveKey(filename string) (string, error) {
	base := path.Base(filename)
	if base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("unusable filename %q", filename)
	}
	return path.Join(archivePrefix, base), nil
}

// streamReader adapts a MediaStream to io.Reader.
type streamReader struct {
	stream  repository.MediaStream
	pending []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		chunk, err := r.stream.Next()
		if err != nil {
			return 0, err
		}
		r.pending = chunk
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
