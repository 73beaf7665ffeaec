package storage

import (
	"database/sql"
	"fmt"

	"github.com/marcus/taskdock/internal/models"
)

// GetSettings returns the singleton settings row for the scope, or
// ErrNotFound when none has been written yet.
func GetSettings(q Querier, sc Scope) (*models.Settings, error) {
	where, args := sc.settingsFilter()
	row := q.QueryRow(`SELECT id, theme, notifications, app_prefs, demo, owner_id
		FROM settings WHERE `+where, args...)

	var s models.Settings
	var prefs string
	err := row.Scan(&s.ID, &s.Theme, &s.Notifications, &prefs, &s.Demo, &s.OwnerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settings: %w", ErrNotFound)
	}
	if err != nil {
		return nil, classify("get settings", err)
	}
	s.AppPrefs = []byte(prefs)
	return &s, nil
}

// PutSettings inserts or replaces the settings row. The UNIQUE(owner_id,
// demo) index keeps it a singleton per partition/user.
func PutSettings(q Querier, s *models.Settings) error {
	prefs := string(s.AppPrefs)
	if prefs == "" {
		prefs = "{}"
	}
	_, err := q.Exec(`
		INSERT INTO settings (id, theme, notifications, app_prefs, demo, owner_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, demo) DO UPDATE SET
			theme = excluded.theme,
			notifications = excluded.notifications,
			app_prefs = excluded.app_prefs
	`, s.ID, s.Theme, s.Notifications, prefs, s.Demo, s.OwnerID)
	return classify("put settings", err)
}
