package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// ============================================================
// Favorites
// ============================================================

func (db *DB) ToggleFavorite(ctx context.Context, userID, itemID string) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: beginning favorite toggle: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after Commit

	tag, err := tx.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("postgres: removing favorite %s: %w", itemID, err)
	}

	added := tag.RowsAffected() == 0
	if added {
		// a concurrent toggle may have inserted since the DELETE; treat
		// that as already present
		tag, err = tx.Exec(ctx,
			`INSERT INTO favorites (user_id, item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, itemID)
		if err != nil {
			return false, fmt.Errorf("postgres: adding favorite %s: %w", itemID, err)
		}
		added = tag.RowsAffected() == 1
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: committing favorite toggle: %w", err)
	}
	return added, nil
}

func (db *DB) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT item_id FROM favorites WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing favorites: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning favorites: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ============================================================
// Saved chats
// ============================================================

func (db *DB) SaveChat(ctx context.Context, userID string, chat *model.SavedChat) error {
	if chat.ID == "" {
		chat.ID = xid.New().String()
	}
	if chat.Date.IsZero() {
		chat.Date = time.Now().UTC()
	}
	messages := chat.Messages
	if messages == nil {
		messages = []model.ChatMessage{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO saved_chats (id, user_id, title, messages, created_at) VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, userID, chat.Title, messages, chat.Date,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("chat", chat.ID)
		}
		return fmt.Errorf("postgres: inserting chat: %w", err)
	}
	return nil
}

func (db *DB) ListChats(ctx context.Context, userID string) ([]model.SavedChat, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, messages, created_at FROM saved_chats
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing chats: %w", err)
	}
	defer rows.Close()

	chats := []model.SavedChat{}
	for rows.Next() {
		var c model.SavedChat
		if err := rows.Scan(&c.ID, &c.Title, &c.Messages, &c.Date); err != nil {
			return nil, fmt.Errorf("postgres: scanning chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ============================================================
// Saved analyses
// ============================================================

func (db *DB) SaveAnalysis(ctx context.Context, userID string, a *model.SavedAnalysis) error {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.Date.IsZero() {
		a.Date = time.Now().UTC()
	}
	metrics := a.Metrics
	if metrics == nil {
		metrics = []model.Finding{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO saved_analyses
		 (id, user_id, url, podcast_name, episode_title, score, report_content, summary, metrics, recommendation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, userID, a.URL, a.PodcastName, a.EpisodeTitle, a.Score,
		a.ReportContent, a.Summary, metrics, a.Recommendation, a.Date,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("analysis", a.ID)
		}
		return fmt.Errorf("postgres: inserting analysis: %w", err)
	}
	return nil
}

func (db *DB) ListAnalyses(ctx context.Context, userID string) ([]model.SavedAnalysis, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, url, podcast_name, episode_title, score, report_content, summary, metrics, recommendation, created_at
		 FROM saved_analyses WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing analyses: %w", err)
	}
	defer rows.Close()

	out := []model.SavedAnalysis{}
	for rows.Next() {
		var a model.SavedAnalysis
		if err := rows.Scan(&a.ID, &a.URL, &a.PodcastName, &a.EpisodeTitle, &a.Score,
			&a.ReportContent, &a.Summary, &a.Metrics, &a.Recommendation, &a.Date); err != nil {
			return nil, fmt.Errorf("postgres: scanning analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ============================================================
// Preferences
// ============================================================

func (db *DB) GetPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	var p model.Preferences
	var locale, theme string
	err := db.pool.QueryRow(ctx,
		`SELECT notifications, regions, locale, theme FROM preferences WHERE user_id = $1`, userID,
	).Scan(&p.Notifications, &p.Regions, &locale, &theme)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Preferences{}, apperror.NotFound("preferences", userID)
		}
		return model.Preferences{}, fmt.Errorf("postgres: getting preferences: %w", err)
	}
	p.Locale = model.Language(locale)
	p.Theme = model.Theme(theme)
	return p, nil
}

func (db *DB) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO preferences (user_id, notifications, regions, locale, theme, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   notifications = EXCLUDED.notifications,
		   regions = EXCLUDED.regions,
		   locale = EXCLUDED.locale,
		   theme = EXCLUDED.theme,
		   updated_at = EXCLUDED.updated_at`,
		userID, p.Notifications, regionsOrEmpty(p.Regions), string(p.Locale), string(p.Theme),
	)
	if err != nil {
		return fmt.Errorf("postgres: saving preferences: %w", err)
	}
	return nil
}

func (db *DB) InitPreferences(ctx context.Context, userID string, p model.Preferences) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO preferences (user_id, notifications, regions, locale, theme)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, p.Notifications, regionsOrEmpty(p.Regions), string(p.Locale), string(p.Theme),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: initialising preferences: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func regionsOrEmpty(r []model.Region) []model.Region {
	if r == nil {
		return []model.Region{}
	}
	return r
}
