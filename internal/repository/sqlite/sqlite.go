// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so there is no CGo and no C compiler
// needed to build or cross-compile the server.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB:   a connection pool (NOT a single connection!)
//   - sql.Tx:   a transaction
//   - sql.Rows: multiple result rows (must be closed!)
//
// SQLite allows a single writer at a time, so the pool is capped at one open
// connection. That also makes ":memory:" databases behave in tests: every
// query sees the same in-memory database instead of a fresh one per connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/snippet-vault/internal/clock"
)

// DB wraps a sql.DB connection pool and implements both
// repository.SnippetRepository and repository.UserRepository.
type DB struct {
	conn  *sql.DB
	clock clock.Clock
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used for created_at/updated_at timestamps.
func WithClock(c clock.Clock) Option {
	return func(db *DB) { db.clock = c }
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/snippets.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, clock: clock.Real{}}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent (IF NOT EXISTS or
// guarded by addColumnIfNotExists), so it runs on every start.
//
// public_expires_at is stored as Unix milliseconds rather than DATETIME text so
// that "expired at or before now" is an exact integer comparison.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER UNIQUE,
			login         TEXT NOT NULL,
			email         TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title             TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			code              TEXT NOT NULL DEFAULT '',
			language          TEXT NOT NULL DEFAULT 'python',
			category          TEXT NOT NULL DEFAULT 'general',
			tags              TEXT NOT NULL DEFAULT '[]',
			usage_count       INTEGER NOT NULL DEFAULT 0,
			is_favorite       INTEGER NOT NULL DEFAULT 0,
			is_public         INTEGER NOT NULL DEFAULT 0,
			in_community      INTEGER NOT NULL DEFAULT 0,
			public_expires_at INTEGER,
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_community ON snippets(in_community, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// Columns added after the first release.
	if err := db.addColumnIfNotExists("snippets", "original_id", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding original_id to snippets: %w", err)
	}
	if err := db.addColumnIfNotExists("snippets", "version", "INTEGER NOT NULL DEFAULT 1"); err != nil {
		return fmt.Errorf("adding version to snippets: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snippets_expiry
			ON snippets(public_expires_at) WHERE public_expires_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating snippets expiry index: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it isn't already present.
// SQLite has no "ADD COLUMN IF NOT EXISTS", so we check pragma_table_info first.
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

func (db *DB) now() time.Time {
	return db.clock.Now().UTC()
}

// toMillis / fromMillis convert the nullable expiry column.
func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
