package repository

import (
	"context"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// Resolver turns a user media URL into download metadata by calling the
// third-party resolver once. It does not cache.
type Resolver interface {
	Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error)
}

// MediaStream is an open upstream media response read in bounded chunks.
type MediaStream interface {
	// ContentType is the upstream Content-Type header.
	ContentType() string

	// Next returns the next chunk. The slice is only valid until the next call.
	// Returns io.EOF after the final chunk, or an error wrapping
	// model.ErrStreamInterrupted when the relay has to stop early.
	Next() ([]byte, error)

	// Relayed is the number of bytes handed out so far.
	Relayed() int64

	// Close releases the upstream connection.
	Close() error
}

// MediaSource opens media URLs for relaying.
type MediaSource interface {
	// Open issues the upstream GET and returns once response headers arrive.
	// Fails with model.ErrUpstreamTimeout or model.ErrUpstream before any byte is relayed.
	Open(ctx context.Context, mediaURL string) (MediaStream, error)
}
