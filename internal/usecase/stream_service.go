package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// ErrClientGone is returned when the downstream consumer stopped accepting bytes.
var ErrClientGone = errors.New("client went away")

// StreamSink receives a relayed stream.
type StreamSink interface {
	// Start is called once, before the first chunk, with the upstream Content-Type.
	Start(contentType string)

	// Write delivers one chunk. Returning an error ends the relay.
	Write(chunk []byte) error
}

// StreamService relays upstream media to a sink without buffering the whole payload.
type StreamService interface {
	// Relay opens mediaURL and copies it chunk by chunk into sink.
	// Errors returned before Start was called leave the sink untouched.
	Relay(ctx context.Context, mediaURL string, sink StreamSink) error
}

type streamService struct {
	source repository.MediaSource
}

// NewStreamService creates a new StreamService instance.
func NewStreamService(source repository.MediaSource) StreamService {
	return &streamService{source: source}
}

func (s *streamService) Relay(ctx context.Context, mediaURL string, sink StreamSink) error {
	stream, err := s.source.Open(ctx, mediaURL)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	sink.Start(stream.ContentType())

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			metrics.StreamsTotal.WithLabelValues(metrics.StreamCompleted).Inc()
			return nil
		}
		if err != nil {
			return s.interrupted(ctx, mediaURL, stream.Relayed(), err)
		}

		if err := sink.Write(chunk); err != nil {
			metrics.StreamsTotal.WithLabelValues(metrics.StreamClientGone).Inc()
			return fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		metrics.StreamBytesTotal.Add(float64(len(chunk)))
	}
}

func (s *streamService) interrupted(ctx context.Context, mediaURL string, relayed int64, err error) error {
	if ctx.Err() != nil {
		metrics.StreamsTotal.WithLabelValues(metrics.StreamClientGone).Inc()
		return fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
	}

	result := metrics.StreamInterrupted
	if errors.Is(err, repository.ErrSizeLimitExceeded) {
		result = metrics.StreamLimitExceeded
	}
	metrics.StreamsTotal.WithLabelValues(result).Inc()

	slog.Warn("stream interrupted",
		slog.String("media_url", mediaURL),
		slog.Int64("bytes_relayed", relayed),
		slog.String("error", err.Error()),
	)
	return err
}
