package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// Upsert inserts or updates a user keyed by provider UID.
//
// An existing user keeps their internal ID and CreatedAt; the profile fields
// are refreshed because people rename themselves and change avatars on the
// provider side.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.UID == "" {
		return apperror.ValidationFailed("uid", "user UID is required")
	}
	user.Name = model.DisplayName(user.Name, user.Email)

	var (
		existingID string
		createdAt  time.Time
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE uid = ?`, user.UID,
	).Scan(&existingID, &createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by uid %s: %w", user.UID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.CreatedAt = createdAt
		user.UpdatedAt = time.Now().UTC()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.Name,
			user.Email,
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, uid, name, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.UID,
		user.Name,
		user.Email,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (uid=%s): %w", user.UID, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByUID returns apperror.ErrNotFound if no user has that UID.
func (db *DB) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	return db.getUser(ctx, "uid", uid)
}

// column is one of two constants above, never user input
func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, uid, name, email, avatar_url, created_at, updated_at
		 FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.UID,
		&u.Name,
		&u.Email,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", value, err)
	}

	return &u, nil
}

// ============================================================
// Local credentials
// ============================================================

// CreateCredential stores a local account. Emails are compared lowercased.
func (db *DB) CreateCredential(ctx context.Context, c *model.Credential) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (uid, email, name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.UID, c.Email, c.Name, c.PasswordHash, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", c.Email)
		}
		return fmt.Errorf("sqlite: inserting credential for %s: %w", c.Email, err)
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
	err := db.conn.QueryRowContext(ctx,
		`SELECT uid, email, name, password_hash, created_at, updated_at
		 FROM credentials WHERE `+column+` = ?`,
		value,
	).Scan(&c.UID, &c.Email, &c.Name, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", value)
		}
		return nil, fmt.Errorf("sqlite: getting credential %s: %w", value, err)
	}
	return &c, nil
}

// UpdatePassword replaces the stored hash.
func (db *DB) UpdatePassword(ctx context.Context, uid, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ?, updated_at = ? WHERE uid = ?`,
		hash, time.Now().UTC(), uid,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("account", uid)
	}
	return nil
}

// isUniqueViolation matches SQLite's constraint message.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
