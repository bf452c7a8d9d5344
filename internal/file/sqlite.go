package file

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteRegistry implements Registry on database/sql with the modernc SQLite
// driver, for single-node deployments that skip PostgreSQL entirely.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates a registry backed by the given handle.
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// Create inserts the record. The insert carries ON CONFLICT DO NOTHING so a
// claimed identifier is detected by the affected row count instead of by
// driver-specific error codes, keeping the check-and-insert atomic.
func (r *SQLiteRegistry) Create(ctx context.Context, rec *Record) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO files (short_id, original_name, location, blob_key, content_type, resource_kind, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (short_id) DO NOTHING`,
		rec.ShortID, rec.OriginalName, rec.Location, rec.BlobKey,
		rec.ContentType, string(rec.Kind), rec.Size, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// Find returns the record for shortID, or ErrNotFound.
func (r *SQLiteRegistry) Find(ctx context.Context, shortID string) (*Record, error) {
	rec := &Record{}
	var (
		kind      string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT short_id, original_name, location, blob_key, content_type, resource_kind, size, created_at
		 FROM files WHERE short_id = ?`,
		shortID,
	).Scan(&rec.ShortID, &rec.OriginalName, &rec.Location, &rec.BlobKey,
		&rec.ContentType, &kind, &rec.Size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	rec.Kind = ResourceKind(kind)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}
