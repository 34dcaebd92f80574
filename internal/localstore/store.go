// Package localstore provides the worker's durable sqlite storage: the four
// named offline collections plus the tables backing the outbox, the response
// cache and the sync trigger registry. Records are best-effort offline
// mirrors of remote rows and are never treated as authoritative.
package localstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/duetapp/duet/internal/localstore/migrations"
)

// Collection names form a closed set.
const (
	CollectionNotes       = "notes"
	CollectionBucketItems = "bucket_items"
	CollectionEvents      = "events"
	CollectionUserPrefs   = "user_prefs"
)

// Collections lists every known collection name.
var Collections = []string{
	CollectionNotes,
	CollectionBucketItems,
	CollectionEvents,
	CollectionUserPrefs,
}

// Store owns the sqlite database shared by the worker's components.
type Store struct {
	db *sql.DB
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if absent) the database at dsn and migrates it to the
// current schema. The caller is responsible for importing a sqlite driver
// registered under the name "sqlite3".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an already-open, already-migrated database. Used by tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that keep their own
// repositories on the same database (cache, outbox, trigger registry).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
