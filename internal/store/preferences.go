package store

import (
	"context"
	"database/sql"
	"errors"
)

// Preference keys.
const (
	PrefNarrationMuted = "narration_muted"
	PrefNotifications  = "notifications"
)

// Notification permission values.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// SetPreference upserts a per-user key-value pair.
func (s *Store) SetPreference(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value,
	)
	return err
}

// GetPreference returns the value for a preference key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetPreference(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
