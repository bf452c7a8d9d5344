// Package db provides database connection and migration utilities for both
// registry backends.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// ConnectPostgres creates and validates a pgx connection pool.
func ConnectPostgres(databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("connected to database")
	return pool, nil
}

// MigratePostgres runs all pending up migrations embedded in the binary.
func MigratePostgres(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Println("database migrations applied")
	return nil
}

// OpenSQLite opens a SQLite database, creating the file if needed, and
// applies the embedded migrations on the same handle. A dsn without a file:
// prefix is treated as a plain path.
func OpenSQLite(dsn string) (*sql.DB, error) {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := MigrateSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Println("connected to database")
	return sqlDB, nil
}

// MigrateSQLite applies the embedded sqlite migrations over an open handle.
// The migrator is not closed afterwards: closing it would also close the
// shared handle.
func MigrateSQLite(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Println("database migrations applied")
	return nil
}
