package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/pavelanni/pathway/internal/model"
)

// ErrBlocked is returned when a transition is attempted while it is not
// permitted. Callers disable the corresponding affordance instead of
// surfacing it.
var ErrBlocked = errors.New("transition not permitted")

// ErrNoCheckpoint is returned by a CheckpointStore with nothing saved.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Phase is the logical position of a session outside or inside the step list.
type Phase int

const (
	PhaseMoodCheck Phase = iota
	PhaseStep
	PhaseSummary
)

func (p Phase) String() string {
	switch p {
	case PhaseMoodCheck:
		return "mood-check"
	case PhaseStep:
		return "step"
	case PhaseSummary:
		return "reflection-summary"
	}
	return "unknown"
}

// CheckpointStore persists the step position of one user per session number.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, sessionNumber int) (model.Checkpoint, error)
	SetCheckpoint(ctx context.Context, sessionNumber int, cp model.Checkpoint) error
	ClearCheckpoint(ctx context.Context, sessionNumber int) error
}

// StepPredicate reports whether "continue" is enabled on a step given the
// answers captured so far.
type StepPredicate func(step model.Step, inputs model.StepInputs) bool

// Lenient never blocks advancement. Generic questionnaire and reflection
// answers are optional.
func Lenient(model.Step, model.StepInputs) bool { return true }

// StrictQuestions blocks until every declared question has an answer.
func StrictQuestions(step model.Step, inputs model.StepInputs) bool {
	for _, q := range step.Questions {
		if !answered(inputs[q.ID]) {
			return false
		}
	}
	return true
}

// Timing records when a step was entered and last left.
type Timing struct {
	Start time.Time
	End   *time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithQuestionPredicate replaces the completion predicate used for
// questionnaire and reflection steps.
func WithQuestionPredicate(p StepPredicate) Option {
	return func(m *Machine) {
		m.predicates[model.StepQuestionnaire] = p
		m.predicates[model.StepReflection] = p
	}
}

// Machine is the step state machine for one mounted session.
type Machine struct {
	tmpl        *model.SessionTemplate
	checkpoints CheckpointStore
	predicates  map[model.StepType]StepPredicate
	now         func() time.Time

	phase       Phase
	index       int
	mood        int
	inputs      model.StepInputs
	interaction Interaction
	timings     []Timing
	mountedAt   time.Time
}

// New creates a machine in the mood-check phase.
func New(tmpl *model.SessionTemplate, checkpoints CheckpointStore, opts ...Option) *Machine {
	m := &Machine{
		tmpl:        tmpl,
		checkpoints: checkpoints,
		now:         time.Now,
		predicates: map[model.StepType]StepPredicate{
			model.StepIntro:         Lenient,
			model.StepReflection:    Lenient,
			model.StepQuestionnaire: Lenient,
			model.StepExercise:      Lenient,
			model.StepMeditation:    Lenient,
			model.StepClosing:       Lenient,
			model.StepOutro:         Lenient,
			model.StepReview:        Lenient,
		},
	}
	for _, o := range opts {
		o(m)
	}
	m.reset()
	return m
}

func (m *Machine) reset() {
	m.phase = PhaseMoodCheck
	m.index = -1
	m.mood = 0
	m.inputs = model.StepInputs{}
	m.interaction = nil
	m.timings = make([]Timing, len(m.tmpl.Steps))
	m.mountedAt = m.now()
}

// Restore reads the checkpoint and resumes at the saved step. Missing or
// unreadable checkpoints leave the machine at the mood check.
func (m *Machine) Restore(ctx context.Context) {
	m.reset()
	cp, err := m.checkpoints.GetCheckpoint(ctx, m.tmpl.SessionNumber)
	if err != nil {
		if !errors.Is(err, ErrNoCheckpoint) {
			slog.Warn("ignoring unreadable checkpoint", "session", m.tmpl.SessionNumber, "error", err)
		}
		return
	}
	idx, ok := m.resolve(cp)
	if !ok {
		slog.Warn("checkpoint does not match template", "session", m.tmpl.SessionNumber,
			"step", cp.StepID, "index", cp.StepIndex)
		return
	}
	m.phase = PhaseStep
	m.enter(idx)
	slog.Debug("resumed session", "session", m.tmpl.SessionNumber, "index", idx)
}

// resolve prefers the saved index when its step id still matches, then a
// lookup by id, then the bare index.
func (m *Machine) resolve(cp model.Checkpoint) (int, bool) {
	inRange := cp.StepIndex >= 0 && cp.StepIndex < len(m.tmpl.Steps)
	if inRange && (cp.StepID == "" || StepKey(m.tmpl.Steps[cp.StepIndex], cp.StepIndex) == cp.StepID) {
		return cp.StepIndex, true
	}
	for i, s := range m.tmpl.Steps {
		if StepKey(s, i) == cp.StepID {
			return i, true
		}
	}
	return cp.StepIndex, inRange
}

// Restart returns to the mood check without touching the checkpoint.
func (m *Machine) Restart() { m.reset() }

// SelectMood records the starting mood and enters the first step.
func (m *Machine) SelectMood(ctx context.Context, mood int) error {
	if m.phase != PhaseMoodCheck {
		return fmt.Errorf("select mood in %s: %w", m.phase, ErrBlocked)
	}
	if !model.ValidMood(mood) {
		return fmt.Errorf("mood %d out of range", mood)
	}
	m.mood = mood
	if len(m.tmpl.Steps) == 0 {
		m.toSummary(ctx)
		return nil
	}
	m.phase = PhaseStep
	m.enter(0)
	m.save(ctx)
	return nil
}

// CanContinue reports whether the current step's completion predicate holds.
func (m *Machine) CanContinue() bool {
	if m.phase != PhaseStep {
		return false
	}
	step := m.tmpl.Steps[m.index]
	pred, ok := m.predicates[step.Type]
	if !ok {
		pred = Lenient
	}
	if !pred(step, m.inputs) {
		return false
	}
	return m.interaction == nil || m.interaction.Complete()
}

// CanGoBack reports whether back navigation is permitted.
func (m *Machine) CanGoBack() bool {
	return m.phase == PhaseStep && m.index > 0
}

// Continue advances to the next step, or to the reflection summary after
// the last one.
func (m *Machine) Continue(ctx context.Context) error {
	if !m.CanContinue() {
		return fmt.Errorf("continue from %s: %w", m.describe(), ErrBlocked)
	}
	if m.interaction != nil {
		m.inputs[m.StepKey()] = m.interaction.Value()
	}
	m.leave()
	if m.index+1 >= len(m.tmpl.Steps) {
		m.toSummary(ctx)
		return nil
	}
	m.enter(m.index + 1)
	m.save(ctx)
	return nil
}

// Back returns to the previous step, resetting its substate.
func (m *Machine) Back(ctx context.Context) error {
	if !m.CanGoBack() {
		return fmt.Errorf("back from %s: %w", m.describe(), ErrBlocked)
	}
	m.leave()
	m.enter(m.index - 1)
	m.save(ctx)
	return nil
}

// SetAnswer records an answer for a question of the current step, or for
// the step itself when key is the step key. An empty string clears it.
func (m *Machine) SetAnswer(key string, value any) error {
	step, ok := m.CurrentStep()
	if !ok {
		return fmt.Errorf("answer outside a step: %w", ErrBlocked)
	}
	idx := slices.IndexFunc(step.Questions, func(q model.StepQuestion) bool { return q.ID == key })
	if key != m.StepKey() && idx < 0 {
		return fmt.Errorf("step %s has no question %q", m.StepKey(), key)
	}
	if s, isStr := value.(string); isStr && s == "" {
		delete(m.inputs, key)
		return nil
	}
	if key == m.StepKey() {
		m.inputs[key] = value
		return nil
	}
	v, err := validateAnswer(step.Questions[idx], value)
	if err != nil {
		return err
	}
	m.inputs[key] = v
	return nil
}

func validateAnswer(q model.StepQuestion, value any) (any, error) {
	switch q.Type {
	case model.QuestionLikert:
		n, err := toInt(value)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		if n < model.LikertMin || n > model.LikertMax {
			return nil, fmt.Errorf("question %s: %d outside %d..%d", q.ID, n, model.LikertMin, model.LikertMax)
		}
		return n, nil
	case model.QuestionChoice:
		s := fmt.Sprint(value)
		if !slices.Contains(q.Options, s) {
			return nil, fmt.Errorf("question %s: %q is not an option", q.ID, s)
		}
		return s, nil
	}
	return value, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not a whole number: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func answered(v any) bool {
	switch a := v.(type) {
	case nil:
		return false
	case string:
		return a != ""
	}
	return true
}

func (m *Machine) enter(idx int) {
	m.index = idx
	m.interaction = NewInteraction(m.tmpl.Steps[idx])
	if m.timings[idx].Start.IsZero() {
		m.timings[idx].Start = m.now()
	}
}

func (m *Machine) leave() {
	t := m.now()
	m.timings[m.index].End = &t
}

func (m *Machine) toSummary(ctx context.Context) {
	m.phase = PhaseSummary
	m.interaction = nil
	if err := m.checkpoints.ClearCheckpoint(ctx, m.tmpl.SessionNumber); err != nil {
		slog.Warn("failed to clear checkpoint", "session", m.tmpl.SessionNumber, "error", err)
	}
}

func (m *Machine) save(ctx context.Context) {
	cp := model.Checkpoint{StepID: m.StepKey(), StepIndex: m.index}
	if err := m.checkpoints.SetCheckpoint(ctx, m.tmpl.SessionNumber, cp); err != nil {
		slog.Warn("failed to save checkpoint", "session", m.tmpl.SessionNumber, "step", cp.StepID, "error", err)
	}
}

func (m *Machine) describe() string {
	if m.phase == PhaseStep {
		return "step " + m.StepKey()
	}
	return m.phase.String()
}

// Template returns the session template.
func (m *Machine) Template() *model.SessionTemplate { return m.tmpl }

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Index returns the current step index, -1 before the first step.
func (m *Machine) Index() int { return m.index }

// Mood returns the mood selected at the mood check.
func (m *Machine) Mood() int { return m.mood }

// MountedAt returns when the machine was last reset.
func (m *Machine) MountedAt() time.Time { return m.mountedAt }

// CurrentStep returns the active step while in the step phase.
func (m *Machine) CurrentStep() (model.Step, bool) {
	if m.phase != PhaseStep {
		return model.Step{}, false
	}
	return m.tmpl.Steps[m.index], true
}

// StepKey returns the identity of the active step, or "" outside steps.
func (m *Machine) StepKey() string {
	if m.phase != PhaseStep {
		return ""
	}
	return StepKey(m.tmpl.Steps[m.index], m.index)
}

// Interaction returns the substate of the active bespoke step, or nil.
func (m *Machine) Interaction() Interaction { return m.interaction }

// Inputs returns a copy of the answers captured so far.
func (m *Machine) Inputs() model.StepInputs {
	out := make(model.StepInputs, len(m.inputs))
	for k, v := range m.inputs {
		out[k] = v
	}
	return out
}

// Timing returns the recorded timing of step i.
func (m *Machine) Timing(i int) Timing {
	if i < 0 || i >= len(m.timings) {
		return Timing{}
	}
	return m.timings[i]
}
