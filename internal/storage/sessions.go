package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/taskdock/internal/models"
)

const sessionSelectCols = `id, user_id, token, refresh_token, provider,
	device_id, demo, last_active, expires_at, metadata`

// InsertSession writes a new auth session row.
func InsertSession(q Querier, s *models.AuthSession) error {
	meta := string(s.Metadata)
	if meta == "" {
		meta = "{}"
	}
	_, err := q.Exec(`
		INSERT INTO auth_sessions (id, user_id, token, refresh_token, provider, device_id, demo, last_active, expires_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Token, s.RefreshToken, s.Provider, s.DeviceID, s.Demo,
		s.LastActive, s.ExpiresAt, meta)
	return classify("insert session", err)
}

// GetSession looks up a session by id. Returns ErrNotFound when absent.
func GetSession(q Querier, id string) (*models.AuthSession, error) {
	row := q.QueryRow(`SELECT `+sessionSelectCols+` FROM auth_sessions WHERE id = ?`, id)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify("get session", err)
	}
	return s, nil
}

// ListSessionsByUser returns all sessions for a user ordered by recency.
// Expired sessions are included; the caller decides what to surface.
func ListSessionsByUser(q Querier, userID string) ([]models.AuthSession, error) {
	rows, err := q.Query(`SELECT `+sessionSelectCols+`
		FROM auth_sessions WHERE user_id = ? ORDER BY last_active DESC`, userID)
	if err != nil {
		return nil, classify("list sessions", err)
	}
	defer rows.Close()

	var sessions []models.AuthSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, classify("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSessionActivity refreshes last_active for a session.
func UpdateSessionActivity(q Querier, id string, t time.Time) error {
	res, err := q.Exec(`UPDATE auth_sessions SET last_active = ? WHERE id = ?`, t, id)
	if err != nil {
		return classify("update session activity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSession hard-deletes one session row.
func DeleteSession(q Querier, id string) error {
	_, err := q.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
	return classify("delete session", err)
}

// DeleteSessionsByUser hard-deletes all of a user's sessions, returning
// how many were removed.
func DeleteSessionsByUser(q Querier, userID string) (int64, error) {
	res, err := q.Exec(`DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, classify("delete user sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSession(scan scanFn) (*models.AuthSession, error) {
	var s models.AuthSession
	var expires sql.NullTime
	var meta string
	err := scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.Provider,
		&s.DeviceID, &s.Demo, &s.LastActive, &expires, &meta)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		s.ExpiresAt = &expires.Time
	}
	s.Metadata = []byte(meta)
	return &s, nil
}
