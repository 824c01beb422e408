package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/dfryer1193/retrolaminate/shared/db"
	_ "modernc.org/sqlite"
)

const (
	// defaultPath is the default path for the SQLite database
	defaultPath = "./retrolaminate.db"
)

type SQLiteConfig struct {
	Path string
}

// NewSQLiteConfig reads the database path from SQLITE_DB_PATH, falling back
// to ./retrolaminate.db.
func NewSQLiteConfig() *SQLiteConfig {
	path := os.Getenv("SQLITE_DB_PATH")
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path: path,
	}
}

// SQLiteDB implements the db.Database interface for SQLite
type SQLiteDB struct {
	dbPath string
	db     *sql.DB
}

// NewSQLiteDB creates a new, not yet connected, SQLite database instance.
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	return &SQLiteDB{
		dbPath: cfg.Path,
	}
}

// Connect opens the database, applies pragmas and runs pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB instance, nil when not connected.
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

var _ db.Database = (*SQLiteDB)(nil)
