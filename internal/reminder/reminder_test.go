package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/model"
)

type scheduled struct {
	title, body string
	delay       time.Duration
	opts        map[string]string
}

type fakeNotifier struct {
	permitted bool
	grant     bool
	requested bool
	err       error
	got       []scheduled
}

func (f *fakeNotifier) HasPermission(context.Context) (bool, error) { return f.permitted, nil }

func (f *fakeNotifier) RequestPermission(context.Context) (bool, error) {
	f.requested = true
	f.permitted = f.grant
	return f.grant, nil
}

func (f *fakeNotifier) Schedule(_ context.Context, title, body string, delay time.Duration, opts map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, scheduled{title, body, delay, opts})
	return nil
}

func TestNext(t *testing.T) {
	// Wednesday afternoon.
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		pref *model.SchedulePreference
		want time.Time
	}{
		{"default", nil, time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)},
		{"hour only", &model.SchedulePreference{Hour: 9}, time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)},
		{"next monday", &model.SchedulePreference{Weekdays: []time.Weekday{time.Monday}, Hour: 20},
			time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)},
		{"same weekday is a week later", &model.SchedulePreference{Weekdays: []time.Weekday{time.Wednesday}, Hour: 18},
			time.Date(2026, 10, 21, 18, 0, 0, 0, time.UTC)},
		{"earliest of several", &model.SchedulePreference{Weekdays: []time.Weekday{time.Saturday, time.Thursday}, Hour: 7},
			time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.pref, now))
		})
	}
}

func TestScheduleNext(t *testing.T) {
	require.NoError(t, i18n.Init("en"))
	ctx := i18n.ForLang(context.Background(), "en")
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	n := &fakeNotifier{permitted: true}
	s := New(n, func() time.Time { return now })

	ok, err := s.ScheduleNext(ctx, 5, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, n.got, 1)
	assert.Equal(t, "Time for session 5", n.got[0].title)
	assert.Equal(t, 75*time.Hour, n.got[0].delay)
	assert.Equal(t, "5", n.got[0].opts["session"])
	assert.NotEmpty(t, n.got[0].opts["id"])
	assert.False(t, n.requested)
}

func TestScheduleNextPermission(t *testing.T) {
	ctx := context.Background()

	granted := &fakeNotifier{grant: true}
	ok, err := New(granted, nil).ScheduleNext(ctx, 2, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, granted.requested)
	assert.Len(t, granted.got, 1)

	denied := &fakeNotifier{}
	ok, err = New(denied, nil).ScheduleNext(ctx, 2, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, denied.got)
}

func TestScheduleNextError(t *testing.T) {
	n := &fakeNotifier{permitted: true, err: errors.New("queue full")}
	_, err := New(n, nil).ScheduleNext(context.Background(), 2, nil)
	assert.Error(t, err)
}
