package sqlite

import (
	"database/sql"
	"fmt"
)

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all database migrations.
// Versions are never renumbered once released.
var migrations = []migration{
	{
		version: 1,
		name:    "create_assets_table",
		up: `
			CREATE TABLE IF NOT EXISTS assets (
				id TEXT PRIMARY KEY,
				media_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				filename TEXT NOT NULL DEFAULT '',
				hash TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_assets_created_at
			ON assets(created_at DESC);
		`,
	},
}

// runMigrations executes all pending migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(m.up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version,
		m.name,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}

	return nil
}
