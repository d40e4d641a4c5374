// Package persistence provides SQLite-backed session storage.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"interviewer/pkg/logx"
)

// ErrSessionNotFound is returned by LoadSession for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store is the sqlite-backed Storage implementation. The connection pool is
// capped at one connection because SQLite supports a single writer.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the database at dbPath and brings the
// schema to the current version.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("📦 Database initialized: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying handle so sibling stores (usage counters) can
// share the same database file and writer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
