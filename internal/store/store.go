package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade a catalog one user_version at a time. Entry i moves
// a database from version i to version i+1.
var migrations = []func(*sql.Tx) error{
	addPositionIndexes,
}

// schemaVersion is the user_version of a fully migrated catalog.
var schemaVersion = len(migrations)

// connParams are applied by the driver to every connection it opens.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Store is a SQLite catalog of variation indexes.
type Store struct {
	db *sql.DB
}

// Open opens the catalog at path, creating it if needed, and brings its
// schema up to date. Opening an existing catalog again is a no-op.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// One connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
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

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, schemaVersion)
	}

	for v := version; v < schemaVersion; v++ {
		if err := migrate(db, v); err != nil {
			return err
		}
	}
	return nil
}

// migrate runs migration v and records version v+1 in one transaction.
func migrate(db *sql.DB, v int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", v+1, err)
	}
	defer tx.Rollback()

	if err := migrations[v](tx); err != nil {
		return fmt.Errorf("migrate to v%d: %w", v+1, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", v+1, err)
	}
	return tx.Commit()
}

// addPositionIndexes backs the ORDER BY position of every catalog read.
func addPositionIndexes(tx *sql.Tx) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_variations_position ON variations(product_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_attributes_position ON attributes(product_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_units_position ON units(product_id, position)`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// pragma returns the current value of a pragma on the store's connection.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
