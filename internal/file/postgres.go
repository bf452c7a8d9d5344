package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry implements Registry on a pgx connection pool.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry creates a registry backed by the given pool.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Create inserts the record. The primary key on short_id makes the insert the
// authoritative uniqueness check; a violation maps to ErrDuplicate.
func (r *PostgresRegistry) Create(ctx context.Context, rec *Record) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (short_id, original_name, location, blob_key, content_type, resource_kind, size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ShortID, rec.OriginalName, rec.Location, rec.BlobKey,
		rec.ContentType, string(rec.Kind), rec.Size, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// Find returns the record for shortID, or ErrNotFound.
func (r *PostgresRegistry) Find(ctx context.Context, shortID string) (*Record, error) {
	rec := &Record{}
	var kind string
	err := r.db.QueryRow(ctx,
		`SELECT short_id, original_name, location, blob_key, content_type, resource_kind, size, created_at
		 FROM files WHERE short_id = $1`,
		shortID,
	).Scan(&rec.ShortID, &rec.OriginalName, &rec.Location, &rec.BlobKey,
		&rec.ContentType, &kind, &rec.Size, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	rec.Kind = ResourceKind(kind)
	return rec, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation
// (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
