package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/repository"
)

// Preference fields that can be flipped with TogglePreference.
const (
	PrefNotifications = "notifications"
	PrefTheme         = "theme"
	PrefLanguage      = "language"
)

// LibraryService manages what a signed-in user keeps: favorites, saved chats,
// saved analyses and preferences.
type LibraryService struct {
	store   repository.Store
	content *content.Store
	now     func() time.Time
	logger  *slog.Logger
}

func NewLibraryService(store repository.Store, items *content.Store, logger *slog.Logger) *LibraryService {
	return &LibraryService{store: store, content: items, now: time.Now, logger: logger}
}

// ============================================================
// Favorites
// ============================================================

// ToggleFavorite adds itemID to the user's favorites if absent and removes it
// otherwise. It returns the resulting favorites and whether itemID is now in
// them. Unknown ids are accepted; Saved skips them.
func (s *LibraryService) ToggleFavorite(ctx context.Context, userID, itemID string) ([]string, bool, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, false, apperror.ValidationFailed("id", "item id is required")
	}
	added, err := s.store.ToggleFavorite(ctx, userID, itemID)
	if err != nil {
		return nil, false, fmt.Errorf("service/library: toggling favorite %s: %w", itemID, err)
	}
	favs, err := s.Favorites(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return favs, added, nil
}

func (s *LibraryService) Favorites(ctx context.Context, userID string) ([]string, error) {
	favs, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing favorites: %w", err)
	}
	return favs, nil
}

// Saved resolves the user's favorites against the content collections.
func (s *LibraryService) Saved(ctx context.Context, userID string) ([]model.Item, error) {
	favs, err := s.Favorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.content.Resolve(favs), nil
}

// ============================================================
// Saved chats
// ============================================================

// SaveChat keeps a transcript. An empty transcript is not saved and yields
// a nil chat without error.
func (s *LibraryService) SaveChat(ctx context.Context, userID string, messages []model.ChatMessage) (*model.SavedChat, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	msgs := make([]model.ChatMessage, len(messages))
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, apperror.ValidationFailed("messages", fmt.Sprintf("message %d has unknown role %q", i, m.Role))
		}
		if m.ID == "" {
			m.ID = xid.New().String()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		msgs[i] = m
	}

	chat := &model.SavedChat{
		Title:    model.ChatTitle(now, msgs),
		Messages: msgs,
		Date:     now,
	}
	if err := s.store.SaveChat(ctx, userID, chat); err != nil {
		return nil, fmt.Errorf("service/library: saving chat: %w", err)
	}
	s.logger.Debug("chat saved", slog.String("userID", userID), slog.Int("messages", len(msgs)))
	return chat, nil
}

func (s *LibraryService) Chats(ctx context.Context, userID string) ([]model.SavedChat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing chats: %w", err)
	}
	return chats, nil
}

// ============================================================
// Saved analyses
// ============================================================

func (s *LibraryService) SaveAnalysis(ctx context.Context, userID string, a model.SavedAnalysis) (*model.SavedAnalysis, error) {
	if strings.TrimSpace(a.URL) == "" {
		return nil, apperror.ValidationFailed("url", "url is required")
	}
	if a.Score < 0 || a.Score > 100 {
		return nil, apperror.ValidationFailed("score", "score must be between 0 and 100")
	}
	a.ID = ""
	a.Date = s.now().UTC()
	if err := s.store.SaveAnalysis(ctx, userID, &a); err != nil {
		return nil, fmt.Errorf("service/library: saving analysis: %w", err)
	}
	return &a, nil
}

func (s *LibraryService) Analyses(ctx context.Context, userID string) ([]model.SavedAnalysis, error) {
	out, err := s.store.ListAnalyses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: listing analyses: %w", err)
	}
	return out, nil
}

// ============================================================
// Preferences
// ============================================================

// Preferences returns the user's settings, or the defaults when none are stored.
func (s *LibraryService) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return model.DefaultPreferences(), nil
	}
	if err != nil {
		return model.Preferences{}, fmt.Errorf("service/library: getting preferences: %w", err)
	}
	return p, nil
}

// UpdatePreferences validates and replaces the user's settings.
// Duplicate regions are dropped; an empty region list means Global.
func (s *LibraryService) UpdatePreferences(ctx context.Context, userID string, p model.Preferences) (model.Preferences, error) {
	switch p.Locale {
	case model.LanguageEnglish, model.LanguageArabic:
	default:
		return model.Preferences{}, apperror.ValidationFailed("locale", "locale must be en or ar")
	}
	switch p.Theme {
	case model.ThemeLight, model.ThemeDark:
	default:
		return model.Preferences{}, apperror.ValidationFailed("theme", "theme must be light or dark")
	}

	regions := make([]model.Region, 0, len(p.Regions))
	for _, r := range p.Regions {
		switch r {
		case model.RegionGlobal, model.RegionEgypt, model.RegionMENA:
		default:
			return model.Preferences{}, apperror.ValidationFailed("regions", fmt.Sprintf("unknown region %q", r))
		}
		if !slices.Contains(regions, r) {
			regions = append(regions, r)
		}
	}
	if len(regions) == 0 {
		regions = append(regions, model.RegionGlobal)
	}
	p.Regions = regions

	if err := s.store.SavePreferences(ctx, userID, p); err != nil {
		return model.Preferences{}, fmt.Errorf("service/library: saving preferences: %w", err)
	}
	return p, nil
}

// TogglePreference flips one two-valued setting: notifications on/off,
// light/dark theme, or English/Arabic. "locale" is accepted for "language".
func (s *LibraryService) TogglePreference(ctx context.Context, userID, field string) (model.Preferences, error) {
	p, err := s.Preferences(ctx, userID)
	if err != nil {
		return model.Preferences{}, err
	}

	switch strings.ToLower(field) {
	case PrefNotifications:
		p.Notifications = !p.Notifications
	case PrefTheme:
		if p.Theme == model.ThemeDark {
			p.Theme = model.ThemeLight
		} else {
			p.Theme = model.ThemeDark
		}
	case PrefLanguage, "locale":
		if p.Locale == model.LanguageArabic {
			p.Locale = model.LanguageEnglish
		} else {
			p.Locale = model.LanguageArabic
		}
	default:
		return model.Preferences{}, apperror.ValidationFailed("field", fmt.Sprintf("unknown preference %q", field))
	}

	if err := s.store.SavePreferences(ctx, userID, p); err != nil {
		return model.Preferences{}, fmt.Errorf("service/library: saving preferences: %w", err)
	}
	return p, nil
}

// Profile assembles the user with preferences and library for /api/me.
func (s *LibraryService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/library: fetching user %s: %w", userID, err)
	}
	if user.Preferences, err = s.Preferences(ctx, userID); err != nil {
		return nil, err
	}

	profile := &model.Profile{User: *user}
	if profile.Favorites, err = s.Favorites(ctx, userID); err != nil {
		return nil, err
	}
	if profile.SavedChats, err = s.Chats(ctx, userID); err != nil {
		return nil, err
	}
	if profile.SavedAnalyses, err = s.Analyses(ctx, userID); err != nil {
		return nil, err
	}
	return profile, nil
}
