package persistence

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// initializeSchemaWithMigrations ensures the schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Empty database: create fresh schema.
	if currentVersion == 0 {
		return createSchema(db)
	}
	if currentVersion == CurrentSchemaVersion {
		return nil
	}
	if currentVersion > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

// runMigration applies one schema version step. New versions add a case here.
func runMigration(_ *sql.DB, version int) error {
	switch version {
	default:
		return fmt.Errorf("no migration defined for version %d", version)
	}
}

func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_state TEXT NOT NULL,
			conversation_complete INTEGER NOT NULL DEFAULT 0,
			state_context TEXT,
			missing_areas TEXT,
			last_state_change DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			category TEXT NOT NULL CHECK (category IN
				('scope','users','constraints','nonfunctional','interfaces','data','risks','success')),
			required INTEGER NOT NULL DEFAULT 1,
			position INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS answers (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			is_vague INTEGER NOT NULL DEFAULT 0,
			needs_followup INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			PRIMARY KEY (session_id, question_id)
		)`,

		`CREATE TABLE IF NOT EXISTS requirements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			rationale TEXT,
			priority TEXT NOT NULL CHECK (priority IN ('MUST','SHOULD','COULD')),
			order_index INTEGER NOT NULL
		)`,
	}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indices := []string{
		`CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(session_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_session ON answers(session_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_requirements_session ON requirements(session_id, order_index)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at)`,
	}
	for _, index := range indices {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return setSchemaVersion(db, CurrentSchemaVersion)
}

func getSchemaVersion(db *sql.DB) (int, error) {
	var exists bool
	err := db.QueryRow(
		`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version sql.NullInt64
	err = db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}
