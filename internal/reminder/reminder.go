// Package reminder schedules the local notification for the next session.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/model"
)

const (
	// DefaultDelayDays is used when the user has no schedule preference.
	DefaultDelayDays = 3
	// DefaultHour is the reminder hour when none is preferred.
	DefaultHour = 18
)

// Notifier delivers local notifications on the user's device.
type Notifier interface {
	HasPermission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, title, body string, delay time.Duration, opts map[string]string) error
}

// Next returns when the reminder should fire. With preferred weekdays it
// is the first such day after today; otherwise DefaultDelayDays later.
func Next(pref *model.SchedulePreference, now time.Time) time.Time {
	hour := DefaultHour
	if pref != nil && pref.Hour >= 0 && pref.Hour < 24 {
		hour = pref.Hour
	}
	at := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
	}
	if pref != nil && len(pref.Weekdays) > 0 {
		for i := 1; i <= 7; i++ {
			d := now.AddDate(0, 0, i)
			if slices.Contains(pref.Weekdays, d.Weekday()) {
				return at(d)
			}
		}
	}
	return at(now.AddDate(0, 0, DefaultDelayDays))
}

// Scheduler schedules session reminders through a Notifier.
type Scheduler struct {
	notifier Notifier
	now      func() time.Time
}

// New creates a scheduler. A nil now uses time.Now.
func New(n Notifier, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{notifier: n, now: now}
}

// ScheduleNext schedules a reminder for nextSession. Permission is requested
// when missing; a refusal skips the reminder without error.
func (s *Scheduler) ScheduleNext(ctx context.Context, nextSession int, pref *model.SchedulePreference) (bool, error) {
	ok, err := s.notifier.HasPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("check notification permission: %w", err)
	}
	if !ok {
		ok, err = s.notifier.RequestPermission(ctx)
		if err != nil {
			return false, fmt.Errorf("request notification permission: %w", err)
		}
		if !ok {
			slog.Info("notification permission denied, reminder skipped", "session", nextSession)
			return false, nil
		}
	}

	now := s.now()
	fireAt := Next(pref, now)
	title := i18n.Td(ctx, "ReminderTitle", map[string]any{"N": nextSession})
	body := i18n.T(ctx, "ReminderBody")
	opts := map[string]string{
		"id":      uuid.NewString(),
		"session": strconv.Itoa(nextSession),
	}
	if err := s.notifier.Schedule(ctx, title, body, fireAt.Sub(now), opts); err != nil {
		return false, fmt.Errorf("schedule reminder: %w", err)
	}
	slog.Info("reminder scheduled", "session", nextSession, "at", fireAt)
	return true, nil
}
