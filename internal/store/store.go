package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/flagsweep/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory journal.
const MemoryPath = ":memory:"

// migrations run in order; migrations[i] moves user_version from i to i+1.
var migrations = []func(*sql.DB) error{
	// v1: owner lookup index used by trace --owner.
	func(db *sql.DB) error {
		_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sweeps_owner ON sweeps(owner_id, seq)`)
		return err
	},
}

var currentSchemaVersion = len(migrations)

// Store is the durable sweep journal.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

var _ engine.Journal = (*Store)(nil)

// Open creates or opens the journal at path and brings its schema up to date.
// MemoryPath gives a journal that lives as long as the Store.
//
// File journals run with WAL, synchronous=NORMAL, a 5s busy timeout and
// foreign keys on.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and each extra
	// connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	for _, step := range []struct {
		what string
		fn   func(*sql.DB) error
	}{
		{"apply pragmas", applyPragmas},
		{"apply schema", applySchema},
	} {
		if err := step.fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open journal %s: %s: %w", path, step.what, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema is idempotent: the base tables use IF NOT EXISTS and
// migrations resume from the stored user_version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// verifyPragma reports whether a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
