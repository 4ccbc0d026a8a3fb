package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/pathway/internal/commit"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/reminder"
	"github.com/pavelanni/pathway/internal/session"
)

type fakeTemplates map[int]*model.SessionTemplate

func (f fakeTemplates) FetchSessionTemplate(_ context.Context, n int) (*model.SessionTemplate, error) {
	t, ok := f[n]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", n, model.ErrNotFound)
	}
	return t, nil
}

type memCheckpoints map[int]model.Checkpoint

func (m memCheckpoints) GetCheckpoint(_ context.Context, n int) (model.Checkpoint, error) {
	cp, ok := m[n]
	if !ok {
		return model.Checkpoint{}, session.ErrNoCheckpoint
	}
	return cp, nil
}

func (m memCheckpoints) SetCheckpoint(_ context.Context, n int, cp model.Checkpoint) error {
	m[n] = cp
	return nil
}

func (m memCheckpoints) ClearCheckpoint(_ context.Context, n int) error {
	delete(m, n)
	return nil
}

type fakeRemote struct {
	err     error
	records []model.SessionProgressRecord
}

func (f *fakeRemote) SubmitSessionProgress(_ context.Context, rec model.SessionProgressRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeLocal struct {
	records []model.SessionProgressRecord
}

func (f *fakeLocal) AppendFallback(_ context.Context, _ int64, rec model.SessionProgressRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeNarrator struct {
	requests []narration.Request
	stops    int
	closes   int
}

func (f *fakeNarrator) Narrate(req narration.Request) uint64 {
	f.requests = append(f.requests, req)
	return uint64(len(f.requests))
}

func (f *fakeNarrator) Stop() { f.stops++ }

func (f *fakeNarrator) Close() error {
	f.closes++
	return nil
}

func (f *fakeNarrator) stepIDs() []string {
	var out []string
	for _, r := range f.requests {
		out = append(out, r.StepID)
	}
	return out
}

type fakeNotifier struct {
	opts []map[string]string
}

func (f *fakeNotifier) HasPermission(context.Context) (bool, error)     { return true, nil }
func (f *fakeNotifier) RequestPermission(context.Context) (bool, error) { return true, nil }
func (f *fakeNotifier) Schedule(_ context.Context, _, _ string, _ time.Duration, opts map[string]string) error {
	f.opts = append(f.opts, opts)
	return nil
}

type fixture struct {
	deps     Deps
	cps      memCheckpoints
	remote   *fakeRemote
	local    *fakeLocal
	narrator *fakeNarrator
	notifier *fakeNotifier
}

func newFixture() *fixture {
	tmpl := &model.SessionTemplate{
		SessionNumber: 1,
		Title:         "Values",
		Steps: []model.Step{
			{StepID: "a", Type: "intro", Title: "Welcome", Content: "Let us begin."},
			{StepID: "b", Type: "exercise", Title: "Pick values", Interaction: session.InteractionValues,
				Options: []string{"courage", "kindness"}},
			{StepID: "c", Type: "exercise", Title: "Read", Interaction: session.InteractionPaged,
				Options: []string{"page one", "page two"}},
		},
	}
	f := &fixture{
		cps:      memCheckpoints{},
		remote:   &fakeRemote{},
		local:    &fakeLocal{},
		narrator: &fakeNarrator{},
		notifier: &fakeNotifier{},
	}
	f.deps = Deps{
		Templates:   fakeTemplates{1: tmpl},
		Checkpoints: f.cps,
		Remote:      f.remote,
		Local:       f.local,
		Narrator:    f.narrator,
		Reminders:   reminder.New(f.notifier, nil),
	}
	return f
}

func TestRunCompletesSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := Mount(ctx, f.deps, &model.UserProfile{UserID: 3}, 1)
	require.NoError(t, err)
	assert.Equal(t, "mood-check", r.View().Phase)
	assert.Empty(t, f.narrator.requests)

	require.NoError(t, r.SelectMood(ctx, 2))
	require.NoError(t, r.Continue(ctx))

	assert.False(t, r.View().CanContinue)
	assert.ErrorIs(t, r.Continue(ctx), session.ErrBlocked)
	require.NoError(t, r.Interact(Action{Kind: ActionToggle, Value: "courage"}))
	require.NoError(t, r.Continue(ctx))

	assert.ErrorIs(t, r.Interact(Action{Kind: ActionToggle, Value: "x"}), session.ErrBlocked)
	require.NoError(t, r.Interact(Action{Kind: ActionNextPage}))
	require.NoError(t, r.Continue(ctx))
	assert.Equal(t, "reflection-summary", r.View().Phase)
	assert.Equal(t, []string{"a", "b", "c"}, f.narrator.stepIDs())

	out, err := r.Finish(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, commit.OutcomeRemote, out)
	require.Len(t, f.remote.records, 1)
	rec := f.remote.records[0]
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Len(t, rec.StepProgress, 3)
	assert.Equal(t, []string{"courage"}, rec.Reflections["b"])
	assert.Equal(t, 4, rec.MoodAfter)
	assert.Positive(t, f.narrator.closes)
	assert.Empty(t, f.cps)

	require.Len(t, f.notifier.opts, 1)
	assert.Equal(t, "2", f.notifier.opts[0]["session"])

	assert.True(t, r.View().Done)
	assert.ErrorIs(t, r.Continue(ctx), session.ErrBlocked)
	out, err = r.Exit(ctx)
	require.NoError(t, err)
	assert.Equal(t, commit.OutcomeSkipped, out)
	assert.Len(t, f.remote.records, 1)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	f := newFixture()
	f.cps[1] = model.Checkpoint{StepID: "c", StepIndex: 2}

	r, err := Mount(context.Background(), f.deps, &model.UserProfile{UserID: 3}, 1)
	require.NoError(t, err)
	v := r.View()
	assert.Equal(t, "step", v.Phase)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, []string{"c"}, f.narrator.stepIDs())
}

func TestRunExitSavesInProgress(t *testing.T) {
	f := newFixture()
	f.remote.err = errors.New("offline")
	ctx := context.Background()

	r, err := Mount(ctx, f.deps, &model.UserProfile{UserID: 3}, 1)
	require.NoError(t, err)
	require.NoError(t, r.SelectMood(ctx, 3))
	require.NoError(t, r.Continue(ctx))

	out, err := r.Exit(ctx)
	require.NoError(t, err)
	assert.Equal(t, commit.OutcomeLocal, out)
	require.Len(t, f.local.records, 1)
	assert.Equal(t, model.StatusInProgress, f.local.records[0].Status)
	assert.Len(t, f.local.records[0].StepProgress, 2)
	assert.Empty(t, f.notifier.opts)
	assert.Equal(t, model.Checkpoint{StepID: "b", StepIndex: 1}, f.cps[1])
}

func TestRunExitAtMoodCheckSavesNothing(t *testing.T) {
	f := newFixture()
	r, err := Mount(context.Background(), f.deps, nil, 1)
	require.NoError(t, err)
	out, err := r.Exit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, commit.OutcomeSkipped, out)
	assert.Empty(t, f.remote.records)
}

func TestRunFinishOnlyFromSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r, err := Mount(ctx, f.deps, nil, 1)
	require.NoError(t, err)
	require.NoError(t, r.SelectMood(ctx, 3))
	_, err = r.Finish(ctx, 3)
	assert.ErrorIs(t, err, session.ErrBlocked)
}

func TestRunCompletedSessionNotResubmitted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	profile := &model.UserProfile{UserID: 3, SessionHistory: []model.SessionSummary{
		{SessionNumber: 1, Status: model.StatusCompleted, Timestamp: time.Now()},
	}}
	r, err := Mount(ctx, f.deps, profile, 1)
	require.NoError(t, err)
	require.NoError(t, r.SelectMood(ctx, 3))

	out, err := r.Exit(ctx)
	require.NoError(t, err)
	assert.Equal(t, commit.OutcomeSkipped, out)
	assert.Empty(t, f.remote.records)
}

func TestMountMissingTemplate(t *testing.T) {
	f := newFixture()
	_, err := Mount(context.Background(), f.deps, nil, 9)
	assert.ErrorIs(t, err, model.ErrTemplateUnavailable)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
