// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and the
// server still cross-compiles to a single static binary. Pass ":memory:" as
// the path for a throwaway database in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/sakif/jsmemes/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements both
// repository.SnippetRepository and repository.RunRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and brings the schema up to date.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database is private to the connection that created it.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy; Ping surfaces a bad path now rather than on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets the run log keep writing while snippet reads are served.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates or upgrades every table. Each step is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// Databases from before descriptions existed lack the column.
	if err := db.addColumnIfNotExists("snippets", "description",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding description to snippets: %w", err)
	}

	// events is the JSON array of captured console calls.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL,
			snippet_id  TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL,
			succeeded   INTEGER NOT NULL,
			events      TEXT NOT NULL DEFAULT '[]',
			result      TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_session_created ON runs(session_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column unless pragma_table_info already lists
// it, which makes ALTER TABLE safe to rerun.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// clampPage applies the default and maximum page size.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
