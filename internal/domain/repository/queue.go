package repository

import (
	"context"
	"time"
)

// VideoResolvedEvent is published after the first-ever resolution of a filename.
type VideoResolvedEvent struct {
	Filename    string    `json:"filename"`
	SourceURL   string    `json:"source_url"`
	DownloadURL string    `json:"download_url"`
	ResolvedAt  time.Time `json:"resolved_at"`
	RetryCount  int       `json:"retry_count"`
}

// EventPublisher sends resolution events.
// Used by the API server after a new record is stored.
type EventPublisher interface {
	PublishVideoResolved(ctx context.Context, event VideoResolvedEvent) error
}

// MessageQueue is the archive worker's view of the event queue.
type MessageQueue interface {
	EventPublisher

	// ConsumeVideoResolved blocks, calling handler for each event. A handler
	// error schedules the event again with RetryCount incremented.
	ConsumeVideoResolved(ctx context.Context, handler func(ctx context.Context, event VideoResolvedEvent) error) error

	Close() error
}
