// Package sqlite implements the repository interfaces on SQLite, the
// default storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the server
// builds without a C toolchain and cross-compiles like any other Go binary.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB   is a connection pool, not a single connection
//   - sql.Tx   is a transaction (favorites toggle runs in one)
//   - sql.Rows holds multiple result rows and must be closed
//
// Structured columns (chat messages, analysis findings, preferred regions)
// are stored as JSON text.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/sakif/nexusmena/internal/repository"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

// compile-time check that *DB implements every repository interface
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// connPragmas are applied by the driver to every pooled connection.
// busy_timeout makes a writer wait for the lock instead of failing with
// SQLITE_BUSY; _txlock=immediate takes that lock at BEGIN, so a
// read-then-write transaction never has to upgrade.
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/nexusmena.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database, lost on close (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" gets its own empty database, so the
	// pool must never open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy. Ping surfaces a bad path or permissions now
	// instead of on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the per-connection pragmas to dbPath. WAL lets readers
// proceed while a write is in progress; it is stored in the file, and an
// in-memory database has no file to store it in.
func dsn(dbPath string) string {
	q := connPragmas
	if dbPath != ":memory:" {
		q += "&_pragma=journal_mode(WAL)"
	}
	return dbPath + "?" + q
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			uid        TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// credentials are keyed by uid, not users.id: sign-up creates the
	// credential before the sign-in event creates the profile.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			uid           TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating credentials table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, item_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating favorites table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_chats (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			messages   TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_saved_chats_user ON saved_chats(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_chats table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_analyses (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			url            TEXT NOT NULL DEFAULT '',
			podcast_name   TEXT NOT NULL DEFAULT '',
			episode_title  TEXT NOT NULL DEFAULT '',
			score          INTEGER NOT NULL DEFAULT 0,
			summary        TEXT NOT NULL DEFAULT '',
			metrics        TEXT NOT NULL DEFAULT '[]',
			recommendation TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_saved_analyses_user ON saved_analyses(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_analyses table: %w", err)
	}

	// full report text was added after the first analyses were saved
	if err := db.addColumnIfNotExists("saved_analyses", "report_content",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding report_content to saved_analyses: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			notifications INTEGER NOT NULL DEFAULT 1,
			regions       TEXT NOT NULL DEFAULT '["Global"]',
			locale        TEXT NOT NULL DEFAULT 'en',
			theme         TEXT NOT NULL DEFAULT 'light',
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating preferences table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent.
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
