// Package engine runs one mounted therapy session: it drives the step
// machine, narrates each step, commits progress on finish or exit and
// schedules the reminder for the next session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/pathway/internal/commit"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/reminder"
	"github.com/pavelanni/pathway/internal/session"
)

// TemplateFetcher loads a session template. A missing template is reported
// with model.ErrNotFound.
type TemplateFetcher interface {
	FetchSessionTemplate(ctx context.Context, sessionNumber int) (*model.SessionTemplate, error)
}

// Narrator plays step narration. *narration.Controller implements it.
type Narrator interface {
	Narrate(req narration.Request) uint64
	Stop()
	Close() error
}

// Deps are the collaborators of a Run. Narrator and Reminders are optional.
type Deps struct {
	Templates   TemplateFetcher
	Checkpoints session.CheckpointStore
	Remote      commit.Submitter
	Local       commit.FallbackStore
	Narrator    Narrator
	Reminders   *reminder.Scheduler
	Options     []session.Option
	Now         func() time.Time
}

// Run is one mounted session. Its methods are safe for concurrent use;
// transitions are serialized.
type Run struct {
	mu        sync.Mutex
	userID    int64
	profile   *model.UserProfile
	machine   *session.Machine
	pipeline  *commit.Pipeline
	narrator  Narrator
	reminders *reminder.Scheduler
	now       func() time.Time

	done   bool
	record *model.SessionProgressRecord
}

// Mount loads the template, restores the checkpoint and narrates the
// resumed step, if any.
func Mount(ctx context.Context, deps Deps, profile *model.UserProfile, sessionNumber int) (*Run, error) {
	tmpl, err := deps.Templates.FetchSessionTemplate(ctx, sessionNumber)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w: %w", sessionNumber, model.ErrTemplateUnavailable, err)
	}
	session.Normalize(tmpl)

	if profile == nil {
		profile = &model.UserProfile{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	opts := append([]session.Option{session.WithClock(now)}, deps.Options...)

	r := &Run{
		userID:    profile.UserID,
		profile:   profile,
		machine:   session.New(tmpl, deps.Checkpoints, opts...),
		pipeline:  commit.NewPipeline(deps.Remote, deps.Local, profile.SessionHistory),
		narrator:  deps.Narrator,
		reminders: deps.Reminders,
		now:       now,
	}
	r.machine.Restore(ctx)
	r.narrate()
	slog.Info("session mounted", "user", r.userID, "session", sessionNumber,
		"phase", r.machine.Phase(), "index", r.machine.Index())
	return r, nil
}

// View is a snapshot of the run for rendering.
type View struct {
	SessionNumber int              `json:"sessionNumber"`
	Title         string           `json:"title"`
	Phase         string           `json:"phase"`
	Index         int              `json:"index"`
	Total         int              `json:"total"`
	StepKey       string           `json:"stepKey,omitempty"`
	Step          *model.Step      `json:"step,omitempty"`
	Interaction   any              `json:"interaction,omitempty"`
	Inputs        model.StepInputs `json:"inputs"`
	Mood          int              `json:"mood,omitempty"`
	CanContinue   bool             `json:"canContinue"`
	CanGoBack     bool             `json:"canGoBack"`
	Done          bool             `json:"done"`
}

// View returns the current state.
func (r *Run) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.machine
	v := View{
		SessionNumber: m.Template().SessionNumber,
		Title:         m.Template().Title,
		Phase:         m.Phase().String(),
		Index:         m.Index(),
		Total:         len(m.Template().Steps),
		StepKey:       m.StepKey(),
		Inputs:        m.Inputs(),
		Mood:          m.Mood(),
		CanContinue:   m.CanContinue(),
		CanGoBack:     m.CanGoBack(),
		Done:          r.done,
	}
	if step, ok := m.CurrentStep(); ok {
		v.Step = &step
	}
	if in := m.Interaction(); in != nil {
		v.Interaction = in.Value()
	}
	return v
}

// Record returns the last committed record, or nil.
func (r *Run) Record() *model.SessionProgressRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// SelectMood records the starting mood and enters the first step.
func (r *Run) SelectMood(ctx context.Context, mood int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	if err := r.machine.SelectMood(ctx, mood); err != nil {
		return err
	}
	r.narrate()
	return nil
}

// Answer records a question answer in the current step.
func (r *Run) Answer(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	return r.machine.SetAnswer(key, value)
}

// Continue advances and narrates the next step.
func (r *Run) Continue(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	if err := r.machine.Continue(ctx); err != nil {
		return err
	}
	r.narrate()
	return nil
}

// Back returns to the previous step and narrates it.
func (r *Run) Back(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	if err := r.machine.Back(ctx); err != nil {
		return err
	}
	r.narrate()
	return nil
}

// Restart discards the in-memory answers and returns to the mood check.
func (r *Run) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	r.machine.Restart()
	r.narrate()
	return nil
}

// Action is a user gesture inside a bespoke interaction.
type Action struct {
	Kind   string `json:"kind"`
	Index  int    `json:"index,omitempty"`
	Value  string `json:"value,omitempty"`
	Target string `json:"target,omitempty"`
}

// Interaction action kinds.
const (
	ActionAcknowledge = "acknowledge"
	ActionNextSense   = "next-sense"
	ActionToggle      = "toggle"
	ActionAssign      = "assign"
	ActionChoose      = "choose"
	ActionNextPage    = "next-page"
	ActionPrevPage    = "prev-page"
)

// Interact applies an action to the current step's interaction.
func (r *Run) Interact(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return err
	}
	in := r.machine.Interaction()
	var err error
	switch x := in.(type) {
	case *session.Grounding:
		switch a.Kind {
		case ActionAcknowledge:
			err = x.Acknowledge(a.Index)
		case ActionNextSense:
			err = x.NextSense()
		default:
			err = unsupported(a)
		}
	case *session.ValuesSelection:
		if a.Kind != ActionToggle {
			return unsupported(a)
		}
		err = x.Toggle(a.Value)
	case *session.CardSort:
		if a.Kind != ActionAssign {
			return unsupported(a)
		}
		err = x.Assign(a.Value, a.Target)
	case *session.ChoicePoint:
		if a.Kind != ActionChoose {
			return unsupported(a)
		}
		err = x.Choose(a.Value, a.Target)
	case *session.PagedExercise:
		switch a.Kind {
		case ActionNextPage:
			err = x.NextPage()
		case ActionPrevPage:
			err = x.PrevPage()
		default:
			err = unsupported(a)
		}
	default:
		return fmt.Errorf("step has no interaction: %w", session.ErrBlocked)
	}
	return err
}

func unsupported(a Action) error {
	return fmt.Errorf("action %q not supported here: %w", a.Kind, session.ErrBlocked)
}

// Finish commits the session as completed from the reflection summary and
// schedules the next reminder. Only a failed local save is returned.
func (r *Run) Finish(ctx context.Context, moodAfter int) (commit.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.active(); err != nil {
		return commit.OutcomeSkipped, err
	}
	if r.machine.Phase() != session.PhaseSummary {
		return commit.OutcomeSkipped, fmt.Errorf("finish from %s: %w", r.machine.Phase(), session.ErrBlocked)
	}
	if moodAfter != 0 && !model.ValidMood(moodAfter) {
		return commit.OutcomeSkipped, fmt.Errorf("mood %d out of range", moodAfter)
	}

	rec := commit.Build(r.machine, r.userID, model.StatusCompleted, moodAfter, r.now())
	out, err := r.pipeline.Commit(ctx, rec)
	r.record = &rec
	r.release()
	if err != nil {
		return out, err
	}
	r.done = true
	if out != commit.OutcomeSkipped {
		r.remind(ctx, rec.SessionNumber+1)
	}
	return out, nil
}

// Exit commits the session as in progress and releases narration. Exiting
// at the mood check has nothing to save.
func (r *Run) Exit(ctx context.Context) (commit.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
	if r.done || r.machine.Phase() == session.PhaseMoodCheck {
		r.done = true
		return commit.OutcomeSkipped, nil
	}

	rec := commit.Build(r.machine, r.userID, model.StatusInProgress, 0, r.now())
	out, err := r.pipeline.Commit(ctx, rec)
	r.record = &rec
	if err != nil {
		return out, err
	}
	r.done = true
	return out, nil
}

// Close releases narration without committing.
func (r *Run) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
}

var errDone = errors.New("session already ended")

func (r *Run) active() error {
	if r.done {
		return fmt.Errorf("%w: %w", errDone, session.ErrBlocked)
	}
	return nil
}

func (r *Run) narrate() {
	if r.narrator == nil {
		return
	}
	step, ok := r.machine.CurrentStep()
	if !ok {
		r.narrator.Stop()
		return
	}
	key := r.machine.StepKey()
	r.narrator.Narrate(narration.NewRequest(r.machine.Template().SessionNumber, key, step))
}

func (r *Run) release() {
	if r.narrator == nil {
		return
	}
	if err := r.narrator.Close(); err != nil {
		slog.Warn("failed to release audio context", "error", err)
	}
}

func (r *Run) remind(ctx context.Context, next int) {
	if r.reminders == nil {
		return
	}
	if _, err := r.reminders.ScheduleNext(ctx, next, r.profile.SchedulePreference); err != nil {
		slog.Warn("failed to schedule reminder", "session", next, "error", err)
	}
}
