// Package sqlite is the durable store backend on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teemow/newsletterpost/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_messages (
	message_id   TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	post_id      TEXT NOT NULL DEFAULT '',
	article_url  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	processed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS processed_messages_processed_at
	ON processed_messages (processed_at DESC);
`

// Store is a SQLite-backed store.Store.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, messageID string) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT message_id, status, post_id, article_url, error, processed_at
FROM processed_messages
WHERE message_id = ?
`, strings.TrimSpace(messageID))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	rec, err := store.Normalize(rec)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO processed_messages (
	message_id,
	status,
	post_id,
	article_url,
	error,
	processed_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(message_id) DO UPDATE SET
	status = excluded.status,
	post_id = excluded.post_id,
	article_url = excluded.article_url,
	error = excluded.error,
	processed_at = excluded.processed_at
`,
		rec.MessageID,
		rec.Status,
		rec.PostID,
		rec.ArticleURL,
		rec.Error,
		rec.ProcessedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, limit int) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT message_id, status, post_id, article_url, error, processed_at
FROM processed_messages
ORDER BY processed_at DESC, message_id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]store.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.Record, error) {
	var (
		rec         store.Record
		processedAt int64
	)
	if err := row.Scan(&rec.MessageID, &rec.Status, &rec.PostID, &rec.ArticleURL, &rec.Error, &processedAt); err != nil {
		return store.Record{}, err
	}
	rec.ProcessedAt = time.UnixMilli(processedAt).UTC()
	return rec, nil
}
