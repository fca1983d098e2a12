package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/market"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/portal"
	sqliteRepo "github.com/sakif/nexusmena/internal/repository/sqlite"
)

// =========================================================================
// HELPERS
// =========================================================================

// newTestPortal starts a portal over an in-memory database, the fixture
// market and a gateway around gen (nil means no credential).
func newTestPortal(t *testing.T, gen gateway.Generator) (*portal.State, *sqliteRepo.DB) {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, err := market.NewFixtureSource()
	require.NoError(t, err)

	st := portal.New(portal.Deps{
		Users:       db,
		Preferences: db,
		Gateway:     gateway.NewWithGenerator(gen, gateway.Config{}, testLogger()),
		Market:      src,
		Logger:      testLogger(),
	})
	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(st.Close)
	return st, db
}

func newTestLibrary(t *testing.T) (*LibraryService, string) {
	t.Helper()
	st, db := newTestPortal(t, nil)

	u := &model.User{UID: "local:test", Name: "Test"}
	require.NoError(t, db.Upsert(context.Background(), u))

	svc := NewLibraryService(db, st.Content, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc, u.ID
}

// =========================================================================
// Favorites
// =========================================================================

func TestToggleFavorite_TwiceRestores(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	favs, added, err := svc.ToggleFavorite(ctx, uid, "n1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"n1"}, favs)

	favs, added, err = svc.ToggleFavorite(ctx, uid, "n1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, favs)
}

func TestToggleFavorite_EmptyID(t *testing.T) {
	svc, uid := newTestLibrary(t)

	_, _, err := svc.ToggleFavorite(context.Background(), uid, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSaved_ResolvesByKind(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "e1", "unknown", "n1"} {
		_, _, err := svc.ToggleFavorite(ctx, uid, id)
		require.NoError(t, err)
	}

	items, err := svc.Saved(ctx, uid)
	require.NoError(t, err)
	require.Len(t, items, 3, "unknown ids are skipped")

	// collection order, not favorite order
	assert.Equal(t, "n1", items[0].ID)
	assert.Equal(t, model.KindEvent, items[1].Kind)
	assert.Equal(t, "Event", items[1].Label())
	assert.Equal(t, model.KindPodcast, items[2].Kind)
}

// =========================================================================
// Chats and analyses
// =========================================================================

func TestSaveChat(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	chat, err := svc.SaveChat(ctx, uid, []model.ChatMessage{
		{Role: model.RoleUser, Content: "How is the EGX 30 doing this week?"},
		{Role: model.RoleAssistant, Content: "It closed up 1.2%."},
	})
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "Chat 2025-03-10 - How is the EGX 30 do...", chat.Title)
	for _, m := range chat.Messages {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Timestamp.IsZero())
	}

	chats, err := svc.Chats(ctx, uid)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)
}

func TestSaveChat_EmptyIsNoOp(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	chat, err := svc.SaveChat(ctx, uid, nil)
	require.NoError(t, err)
	assert.Nil(t, chat)

	chats, err := svc.Chats(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestSaveChat_RejectsUnknownRole(t *testing.T) {
	svc, uid := newTestLibrary(t)

	_, err := svc.SaveChat(context.Background(), uid, []model.ChatMessage{{Role: "system", Content: "x"}})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSaveAnalysis(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      model.SavedAnalysis
		wantErr bool
	}{
		{"valid", model.SavedAnalysis{URL: "https://example.com/ep1", PodcastName: "Tech Talk", Score: 82}, false},
		{"missing url", model.SavedAnalysis{Score: 50}, true},
		{"score above range", model.SavedAnalysis{URL: "https://example.com", Score: 101}, true},
		{"negative score", model.SavedAnalysis{URL: "https://example.com", Score: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SaveAnalysis(ctx, uid, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
		})
	}

	list, err := svc.Analyses(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =========================================================================
// Preferences
// =========================================================================

func TestPreferences_DefaultsWhenMissing(t *testing.T) {
	svc, _ := newTestLibrary(t)

	p, err := svc.Preferences(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), p)
}

func TestUpdatePreferences(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	got, err := svc.UpdatePreferences(ctx, uid, model.Preferences{
		Regions: []model.Region{model.RegionEgypt, model.RegionEgypt, model.RegionMENA},
		Locale:  model.LanguageArabic,
		Theme:   model.ThemeDark,
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Region{model.RegionEgypt, model.RegionMENA}, got.Regions)

	stored, err := svc.Preferences(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	for _, bad := range []model.Preferences{
		{Locale: "fr", Theme: model.ThemeLight},
		{Locale: model.LanguageEnglish, Theme: "sepia"},
		{Locale: model.LanguageEnglish, Theme: model.ThemeLight, Regions: []model.Region{"Mars"}},
	} {
		_, err := svc.UpdatePreferences(ctx, uid, bad)
		assert.ErrorIs(t, err, apperror.ErrValidation, "%+v", bad)
	}
}

func TestTogglePreference(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	p, err := svc.TogglePreference(ctx, uid, PrefTheme)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, p.Theme)

	p, err = svc.TogglePreference(ctx, uid, "locale")
	require.NoError(t, err)
	assert.Equal(t, model.LanguageArabic, p.Locale)

	p, err = svc.TogglePreference(ctx, uid, PrefNotifications)
	require.NoError(t, err)
	assert.False(t, p.Notifications)

	p, err = svc.TogglePreference(ctx, uid, PrefTheme)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, p.Theme)
	assert.Equal(t, model.LanguageArabic, p.Locale, "other settings survive")

	_, err = svc.TogglePreference(ctx, uid, "volume")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestProfile(t *testing.T) {
	svc, uid := newTestLibrary(t)
	ctx := context.Background()

	_, _, err := svc.ToggleFavorite(ctx, uid, "s1")
	require.NoError(t, err)

	p, err := svc.Profile(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Test", p.Name)
	assert.Equal(t, []string{"s1"}, p.Favorites)
	assert.Equal(t, model.DefaultPreferences(), p.Preferences)
	assert.NotNil(t, p.SavedChats)
	assert.NotNil(t, p.SavedAnalyses)

	_, err = svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
