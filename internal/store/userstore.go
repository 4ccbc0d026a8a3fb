package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/session"
)

// UserStore scopes checkpoints, preferences and notifications to one user.
type UserStore struct {
	s      *Store
	userID int64
}

// ForUser returns a view of the store for one user.
func (s *Store) ForUser(userID int64) *UserStore {
	return &UserStore{s: s, userID: userID}
}

// UserID returns the user the view belongs to.
func (u *UserStore) UserID() int64 { return u.userID }

// GetCheckpoint returns the saved position, session.ErrNoCheckpoint when
// none exists, or a decode error for a corrupt entry.
func (u *UserStore) GetCheckpoint(ctx context.Context, sessionNumber int) (model.Checkpoint, error) {
	var data string
	err := u.s.db.QueryRowContext(ctx,
		`SELECT data FROM checkpoints WHERE user_id = ? AND session_number = ?`,
		u.userID, sessionNumber,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Checkpoint{}, session.ErrNoCheckpoint
	}
	if err != nil {
		return model.Checkpoint{}, err
	}
	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return model.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

// SetCheckpoint saves the position inside a session.
func (u *UserStore) SetCheckpoint(ctx context.Context, sessionNumber int, cp model.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	_, err = u.s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (user_id, session_number, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, session_number) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		u.userID, sessionNumber, string(data), u.s.now(),
	)
	return err
}

// ClearCheckpoint removes the saved position.
func (u *UserStore) ClearCheckpoint(ctx context.Context, sessionNumber int) error {
	_, err := u.s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE user_id = ? AND session_number = ?`, u.userID, sessionNumber)
	return err
}

// NarrationMuted reports the persisted mute preference.
func (u *UserStore) NarrationMuted(ctx context.Context) (bool, error) {
	v, err := u.s.GetPreference(ctx, u.userID, PrefNarrationMuted)
	return v == "true", err
}

// SetNarrationMuted persists the mute preference.
func (u *UserStore) SetNarrationMuted(ctx context.Context, muted bool) error {
	v := "false"
	if muted {
		v = "true"
	}
	return u.s.SetPreference(ctx, u.userID, PrefNarrationMuted, v)
}

// HasPermission reports whether reminders were allowed.
func (u *UserStore) HasPermission(ctx context.Context) (bool, error) {
	v, err := u.s.GetPreference(ctx, u.userID, PrefNotifications)
	return v == PermissionGranted, err
}

// RequestPermission grants reminders unless the user has opted out.
func (u *UserStore) RequestPermission(ctx context.Context) (bool, error) {
	v, err := u.s.GetPreference(ctx, u.userID, PrefNotifications)
	if err != nil {
		return false, err
	}
	if v == PermissionDenied {
		return false, nil
	}
	if err := u.s.SetPreference(ctx, u.userID, PrefNotifications, PermissionGranted); err != nil {
		return false, err
	}
	return true, nil
}

// Schedule queues a notification to fire after delay. opts["id"] is used as
// the notification id when present.
func (u *UserStore) Schedule(ctx context.Context, title, body string, delay time.Duration, opts map[string]string) error {
	n := model.Notification{
		ID:     opts["id"],
		UserID: u.userID,
		Title:  title,
		Body:   body,
		FireAt: u.s.now().Add(delay),
		Opts:   opts,
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return u.s.InsertNotification(ctx, n)
}

// FetchUserProfile returns this user's profile.
func (u *UserStore) FetchUserProfile(ctx context.Context) (*model.UserProfile, error) {
	return u.s.FetchUserProfile(ctx, u.userID)
}

// InsertNotification stores a scheduled notification.
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) error {
	opts, err := json.Marshal(n.Opts)
	if err != nil {
		return fmt.Errorf("encode notification options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, body, fire_at, opts) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, n.FireAt, string(opts),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	slog.Debug("notification queued", "id", n.ID, "user", n.UserID, "fire_at", n.FireAt)
	return nil
}

// ListNotifications returns a user's notifications ordered by fire time.
func (s *Store) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, fire_at, opts FROM notifications
		 WHERE user_id = ? ORDER BY fire_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var opts string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.FireAt, &opts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &n.Opts); err != nil {
			return nil, fmt.Errorf("decode notification options: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNotification removes a delivered or dismissed notification.
func (s *Store) DeleteNotification(ctx context.Context, userID int64, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	return err
}
