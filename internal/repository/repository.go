// Package repository defines the persistence interfaces the services depend
// on. Implementations live in the sqlite and postgres subpackages; both
// return apperror values for not-found and conflict cases so services and
// handlers never see driver errors for expected conditions.
package repository

import (
	"context"

	"github.com/sakif/nexusmena/internal/model"
)

// UserRepository stores profiles keyed by provider UID.
type UserRepository interface {
	// Upsert creates the user on first sign-in or refreshes name, email and
	// avatar on later ones. user.ID, CreatedAt and UpdatedAt are filled in.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUID(ctx context.Context, uid string) (*model.User, error)
}

// CredentialRepository stores local email + password accounts.
type CredentialRepository interface {
	// CreateCredential returns apperror.ErrConflict when the email is taken.
	CreateCredential(ctx context.Context, c *model.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*model.Credential, error)
	GetCredentialByUID(ctx context.Context, uid string) (*model.Credential, error)
	UpdatePassword(ctx context.Context, uid, hash string) error
}

// FavoriteRepository stores the per-user favorites set.
type FavoriteRepository interface {
	// ToggleFavorite removes itemID if present, adds it otherwise, and
	// reports whether it is now a favorite. Atomic per call.
	ToggleFavorite(ctx context.Context, userID, itemID string) (added bool, err error)
	// ListFavorites returns item IDs in the order they were added.
	ListFavorites(ctx context.Context, userID string) ([]string, error)
}

// ChatRepository stores saved assistant transcripts.
type ChatRepository interface {
	SaveChat(ctx context.Context, userID string, chat *model.SavedChat) error
	// ListChats returns newest first.
	ListChats(ctx context.Context, userID string) ([]model.SavedChat, error)
}

// AnalysisRepository stores saved podcast analyses.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, userID string, a *model.SavedAnalysis) error
	// ListAnalyses returns newest first.
	ListAnalyses(ctx context.Context, userID string) ([]model.SavedAnalysis, error)
}

// PreferenceRepository stores per-user preferences.
type PreferenceRepository interface {
	// GetPreferences returns apperror.ErrNotFound for users without a row.
	GetPreferences(ctx context.Context, userID string) (model.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p model.Preferences) error
	// InitPreferences stores p only if the user has no preferences yet and
	// reports whether it did.
	InitPreferences(ctx context.Context, userID string, p model.Preferences) (bool, error)
}

// Store is everything a storage backend provides.
type Store interface {
	UserRepository
	CredentialRepository
	FavoriteRepository
	ChatRepository
	AnalysisRepository
	PreferenceRepository
	Close() error
}
