// ABOUTME: SQLite implementation of the profile store using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Opens the database, applies pragmas and creates the profile schema

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// SQLiteStore implements ProfileStore and SQLStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements both store interfaces.
var (
	_ ProfileStore = (*SQLiteStore)(nil)
	_ SQLStore     = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens a store at path with the default pure-Go driver.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(DriverModernc, path)
}

// Open creates a store at the given path using the named driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverMattn:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if memory {
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "driver", driver, "path", path)
	return s, nil
}

// createSchema creates the profile tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS experience (
			id            TEXT PRIMARY KEY,
			job_title     TEXT NOT NULL,
			company       TEXT NOT NULL,
			start_date    TEXT NOT NULL,
			end_date      TEXT,
			description   TEXT NOT NULL DEFAULT '',
			display_order INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS skills (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			proficiency   INTEGER NOT NULL DEFAULT 0,
			display_order INTEGER NOT NULL DEFAULT 0,

			CHECK (proficiency BETWEEN 0 AND 100)
		);

		CREATE INDEX IF NOT EXISTS idx_skills_category ON skills(category);

		CREATE TABLE IF NOT EXISTS projects (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			technologies  TEXT NOT NULL DEFAULT '[]',
			url           TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS blog_posts (
			id            TEXT PRIMARY KEY,
			slug          TEXT NOT NULL UNIQUE,
			title         TEXT NOT NULL,
			summary       TEXT NOT NULL DEFAULT '',
			body          TEXT NOT NULL DEFAULT '',
			display_order INTEGER NOT NULL DEFAULT 0,
			published_at  TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
