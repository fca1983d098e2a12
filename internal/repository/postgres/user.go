package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// Upsert relies on ON CONFLICT so concurrent first sign-ins from two
// instances still produce one row. The existing ID and created_at survive.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.UID == "" {
		return apperror.ValidationFailed("uid", "user UID is required")
	}
	user.Name = model.DisplayName(user.Name, user.Email)
	now := time.Now().UTC()

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (id, uid, name, email, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (uid) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   avatar_url = EXCLUDED.avatar_url,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		xid.New().String(), user.UID, user.Name, user.Email, user.AvatarURL, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upserting user (uid=%s): %w", user.UID, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

func (db *DB) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	return db.getUser(ctx, "uid", uid)
}

func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, uid, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE `+column+` = $1`,
		value,
	).Scan(&u.ID, &u.UID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", value, err)
	}
	return &u, nil
}

// ============================================================
// Local credentials
// ============================================================

func (db *DB) CreateCredential(ctx context.Context, c *model.Credential) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO credentials (uid, email, name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		c.UID, c.Email, c.Name, c.PasswordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", c.Email)
		}
		return fmt.Errorf("postgres: inserting credential for %s: %w", c.Email, err)
	}
	return nil
}

func (db *DB) GetCredentialByEmail(ctx context.Context, email string) (*model.Credential, error) {
	return db.getCredential(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) GetCredentialByUID(ctx context.Context, uid string) (*model.Credential, error) {
	return db.getCredential(ctx, "uid", uid)
}

func (db *DB) getCredential(ctx context.Context, column, value string) (*model.Credential, error) {
	var c model.Credential
	err := db.pool.QueryRow(ctx,
		`SELECT uid, email, name, password_hash, created_at, updated_at
		 FROM credentials WHERE `+column+` = $1`,
		value,
	).Scan(&c.UID, &c.Email, &c.Name, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("account", value)
		}
		return nil, fmt.Errorf("postgres: getting credential %s: %w", value, err)
	}
	return &c, nil
}

func (db *DB) UpdatePassword(ctx context.Context, uid, hash string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE credentials SET password_hash = $1, updated_at = now() WHERE uid = $2`,
		hash, uid,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating password for %s: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("account", uid)
	}
	return nil
}
