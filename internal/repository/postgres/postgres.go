// Package postgres implements the repository interfaces on PostgreSQL via
// pgx. It is selected with storage.driver=postgres for deployments running
// more than one portal instance against a shared database.
//
// Structured columns are JSONB; pgx marshals and unmarshals them directly
// from the model types.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/nexusmena/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to url, checks the connection and creates the schema.
func New(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			uid        TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			uid           TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS favorites (
			seq        BIGSERIAL,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS saved_chats (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			messages   JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_chats_user ON saved_chats(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS saved_analyses (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			url            TEXT NOT NULL DEFAULT '',
			podcast_name   TEXT NOT NULL DEFAULT '',
			episode_title  TEXT NOT NULL DEFAULT '',
			score          INT NOT NULL DEFAULT 0,
			summary        TEXT NOT NULL DEFAULT '',
			metrics        JSONB NOT NULL DEFAULT '[]',
			recommendation TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE saved_analyses ADD COLUMN IF NOT EXISTS report_content TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS idx_saved_analyses_user ON saved_analyses(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			notifications BOOLEAN NOT NULL DEFAULT true,
			regions       JSONB NOT NULL DEFAULT '["Global"]',
			locale        TEXT NOT NULL DEFAULT 'en',
			theme         TEXT NOT NULL DEFAULT 'light',
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, q := range queries {
		if _, err := db.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: initialising schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
