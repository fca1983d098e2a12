package model

import (
	"strings"
	"time"
)

// User represents a portal account.
//
// IDENTITY vs ACCOUNT:
// Sign-in is delegated to an identity provider (GitHub OAuth or the local
// email/password provider). The provider hands us a stable UID such as
// "github:1234567" or "local:cp1k3n0...". We still generate our own internal
// string ID (xid) so primary keys never depend on a third party's numbering.
// The UNIQUE constraint on uid in the DB ensures one identity maps to exactly
// one account.
type User struct {
	ID          string      `json:"id"          db:"id"`
	UID         string      `json:"uid"         db:"uid"`      // provider-scoped identity, e.g. "github:42"
	Name        string      `json:"displayName" db:"name"`     // never empty, see DisplayName
	Email       string      `json:"email"       db:"email"`    // may be empty for GitHub users
	AvatarURL   string      `json:"photoURL"    db:"avatar_url"`
	Preferences Preferences `json:"preferences" db:"-"`
	CreatedAt   time.Time   `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt"   db:"updated_at"`
}

// DisplayName picks the name shown for a freshly signed-in identity:
// the provider's display name, else the local part of the email, else "User".
func DisplayName(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	if email != "" && !strings.Contains(email, "@") {
		return email
	}
	return "User"
}

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Preferences are per-user UI and notification settings.
type Preferences struct {
	Notifications bool     `json:"notifications"`
	Regions       []Region `json:"regions"`
	Locale        Language `json:"locale"`
	Theme         Theme    `json:"theme"`
}

// DefaultPreferences are assigned on a user's first sign-in.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: true,
		Regions:       []Region{RegionGlobal},
		Locale:        LanguageEnglish,
		Theme:         ThemeLight,
	}
}

// Finding is one scored observation inside a podcast analysis report.
type Finding struct {
	Name    string `json:"name"`
	Finding string `json:"finding"`
}

// SavedAnalysis is a podcast-quality report the user chose to keep.
type SavedAnalysis struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	PodcastName    string    `json:"podcastName"`
	EpisodeTitle   string    `json:"episodeTitle"`
	Score          int       `json:"score"`
	ReportContent  string    `json:"reportContent,omitempty"`
	Summary        string    `json:"summary"`
	Metrics        []Finding `json:"metrics"`
	Recommendation string    `json:"recommendation"`
	Date           time.Time `json:"date"`
}

// Profile is a user together with their library, as returned by /api/me.
type Profile struct {
	User
	Favorites     []string        `json:"favorites"`
	SavedChats    []SavedChat     `json:"savedChats"`
	SavedAnalyses []SavedAnalysis `json:"savedAnalyses"`
}

// Credential is a local account's sign-in secret. It is keyed by the
// account's identity UID, not the internal user ID, so it can be created
// before the profile exists. Never serialized to clients.
type Credential struct {
	UID          string
	Email        string // stored lowercased, unique
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
