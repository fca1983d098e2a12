package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// ============================================================
// Favorites
// ============================================================

// ToggleFavorite deletes the row if it exists and inserts it otherwise,
// inside one transaction so two concurrent toggles cannot both insert.
func (db *DB) ToggleFavorite(ctx context.Context, userID, itemID string) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning favorite toggle: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	res, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND item_id = ?`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing favorite %s: %w", itemID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: removing favorite %s: %w", itemID, err)
	}

	added := removed == 0
	if added {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO favorites (user_id, item_id, created_at) VALUES (?, ?, ?)`,
			userID, itemID, time.Now().UTC())
		if err != nil {
			return false, fmt.Errorf("sqlite: adding favorite %s: %w", itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing favorite toggle: %w", err)
	}
	return added, nil
}

func (db *DB) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id FROM favorites WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ============================================================
// Saved chats
// ============================================================

// SaveChat stores chat, assigning an ID if it has none.
func (db *DB) SaveChat(ctx context.Context, userID string, chat *model.SavedChat) error {
	if chat.ID == "" {
		chat.ID = xid.New().String()
	}
	if chat.Date.IsZero() {
		chat.Date = time.Now().UTC()
	}
	messages, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("sqlite: encoding chat messages: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO saved_chats (id, user_id, title, messages, created_at) VALUES (?, ?, ?, ?, ?)`,
		chat.ID, userID, chat.Title, string(messages), chat.Date.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("chat", chat.ID)
		}
		return fmt.Errorf("sqlite: inserting chat: %w", err)
	}
	return nil
}

func (db *DB) ListChats(ctx context.Context, userID string) ([]model.SavedChat, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, messages, created_at FROM saved_chats
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chats: %w", err)
	}
	defer rows.Close()

	chats := []model.SavedChat{}
	for rows.Next() {
		var (
			c        model.SavedChat
			messages string
		)
		if err := rows.Scan(&c.ID, &c.Title, &messages, &c.Date); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, fmt.Errorf("sqlite: decoding chat %s: %w", c.ID, err)
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
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("sqlite: encoding analysis metrics: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO saved_analyses
		 (id, user_id, url, podcast_name, episode_title, score, report_content, summary, metrics, recommendation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, userID, a.URL, a.PodcastName, a.EpisodeTitle, a.Score,
		a.ReportContent, a.Summary, string(metrics), a.Recommendation, a.Date.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("analysis", a.ID)
		}
		return fmt.Errorf("sqlite: inserting analysis: %w", err)
	}
	return nil
}

func (db *DB) ListAnalyses(ctx context.Context, userID string) ([]model.SavedAnalysis, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, url, podcast_name, episode_title, score, report_content, summary, metrics, recommendation, created_at
		 FROM saved_analyses WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing analyses: %w", err)
	}
	defer rows.Close()

	out := []model.SavedAnalysis{}
	for rows.Next() {
		var (
			a       model.SavedAnalysis
			metrics string
		)
		if err := rows.Scan(&a.ID, &a.URL, &a.PodcastName, &a.EpisodeTitle, &a.Score,
			&a.ReportContent, &a.Summary, &metrics, &a.Recommendation, &a.Date); err != nil {
			return nil, fmt.Errorf("sqlite: scanning analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &a.Metrics); err != nil {
			return nil, fmt.Errorf("sqlite: decoding analysis %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ============================================================
// Preferences
// ============================================================

func (db *DB) GetPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	var (
		p       model.Preferences
		regions string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT notifications, regions, locale, theme FROM preferences WHERE user_id = ?`, userID,
	).Scan(&p.Notifications, &regions, &p.Locale, &p.Theme)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Preferences{}, apperror.NotFound("preferences", userID)
		}
		return model.Preferences{}, fmt.Errorf("sqlite: getting preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(regions), &p.Regions); err != nil {
		return model.Preferences{}, fmt.Errorf("sqlite: decoding regions: %w", err)
	}
	return p, nil
}

func (db *DB) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	regions, err := encodeRegions(p.Regions)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO preferences (user_id, notifications, regions, locale, theme, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   notifications = excluded.notifications,
		   regions = excluded.regions,
		   locale = excluded.locale,
		   theme = excluded.theme,
		   updated_at = excluded.updated_at`,
		userID, p.Notifications, regions, p.Locale, p.Theme, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving preferences: %w", err)
	}
	return nil
}

func (db *DB) InitPreferences(ctx context.Context, userID string, p model.Preferences) (bool, error) {
	regions, err := encodeRegions(p.Regions)
	if err != nil {
		return false, err
	}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO preferences (user_id, notifications, regions, locale, theme, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, p.Notifications, regions, p.Locale, p.Theme, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: initialising preferences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: initialising preferences: %w", err)
	}
	return n == 1, nil
}

func encodeRegions(r []model.Region) (string, error) {
	if r == nil {
		r = []model.Region{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding regions: %w", err)
	}
	return string(b), nil
}
