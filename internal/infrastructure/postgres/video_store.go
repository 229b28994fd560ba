package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schema = `
	CREATE TABLE IF NOT EXISTS videos (
		id           UUID PRIMARY KEY,
		filename     TEXT NOT NULL UNIQUE,
		source_url   TEXT NOT NULL,
		download_url TEXT,
		payload      JSONB,
		created_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS videos_created_at_idx ON videos (created_at DESC);
`

// VideoStore implements repository.VideoStore using PostgreSQL.
type VideoStore struct {
	db DBTX
}

// NewVideoStore creates a new VideoStore instance.
func NewVideoStore(db DBTX) *VideoStore {
	return &VideoStore{db: db}
}

// EnsureSchema creates the videos table and its indexes if they are missing.
func (s *VideoStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return unavailable("create schema", err)
	}
	return nil
}

// FindByFilename retrieves the record stored for filename.
func (s *VideoStore) FindByFilename(ctx context.Context, filename string) (*model.StoredVideo, error) {
	const query = `
		SELECT id, filename, source_url, download_url, payload, created_at
		FROM videos
		WHERE filename = $1
	`
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQuerySelect, metrics.DriverPostgres).Inc()

	var (
		video       model.StoredVideo
		id          uuid.UUID
		downloadURL *string
		payload     []byte
	)
	err := s.db.QueryRow(ctx, query, filename).Scan(
		&id,
		&video.Filename,
		&video.SourceURL,
		&downloadURL,
		&payload,
		&video.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, unavailable("get video by filename", err)
	}

	video.ID = id.String()
	if downloadURL != nil {
		video.DownloadURL = *downloadURL
	}
	video.Payload = payload
	video.CreatedAt = video.CreatedAt.UTC()
	return &video, nil
}

// InsertIfAbsent relies on the unique filename constraint, so concurrent
// first-time inserts of the same filename create a single row.
func (s *VideoStore) InsertIfAbsent(ctx context.Context, video *model.StoredVideo) (bool, error) {
	const query = `
		INSERT INTO videos (id, filename, source_url, download_url, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (filename) DO NOTHING
	`
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryInsert, metrics.DriverPostgres).Inc()

	id := uuid.New()
	tag, err := s.db.Exec(ctx, query,
		id,
		video.Filename,
		video.SourceURL,
		nullString(video.DownloadURL),
		nullBytes(video.Payload),
		video.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, unavailable("insert video", err)
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}
	video.ID = id.String()
	return true, nil
}

// Count returns the number of stored records.
func (s *VideoStore) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM videos`
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryCount, metrics.DriverPostgres).Inc()

	var n int64
	if err := s.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, unavailable("count videos", err)
	}
	return n, nil
}

// TotalPayloadSize sums the character length of every download URL.
func (s *VideoStore) TotalPayloadSize(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(char_length(download_url)), 0) FROM videos`
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryAggregate, metrics.DriverPostgres).Inc()

	var total int64
	if err := s.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, unavailable("sum payload size", err)
	}
	return total, nil
}

// List returns up to limit records, newest first.
func (s *VideoStore) List(ctx context.Context, limit int) ([]model.VideoSummary, error) {
	const query = `
		SELECT id, filename, source_url, created_at
		FROM videos
		ORDER BY created_at DESC
		LIMIT $1
	`
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQuerySelect, metrics.DriverPostgres).Inc()

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, unavailable("list videos", err)
	}
	defer rows.Close()

	var out []model.VideoSummary
	for rows.Next() {
		var (
			v  model.VideoSummary
			id uuid.UUID
		)
		if err := rows.Scan(&id, &v.Filename, &v.SourceURL, &v.CreatedAt); err != nil {
			return nil, unavailable("scan video", err)
		}
		v.ID = id.String()
		v.CreatedAt = v.CreatedAt.UTC()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate videos", err)
	}

	return out, nil
}

// Ping verifies the database connection is alive.
func (s *VideoStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %v", model.ErrStorageUnavailable, op, err)
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Compile-time verification that VideoStore implements repository.VideoStore.
var _ repository.VideoStore = (*VideoStore)(nil)
