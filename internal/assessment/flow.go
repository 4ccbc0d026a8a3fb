// Package assessment drives the intake assessment: a fixed sequence of
// phases ending in four standardized instruments, scored and submitted as
// one batch.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/scoring"
)

var (
	// ErrIncomplete is returned when advancing past an instrument that
	// still has unanswered items.
	ErrIncomplete = errors.New("assessment phase incomplete")
	// ErrBatchFailed reports that at least one instrument submission failed.
	// The whole batch may be retried.
	ErrBatchFailed = errors.New("assessment submission failed")
	// ErrLocked is returned when the weekly session limit has been reached.
	ErrLocked = errors.New("weekly session limit reached")
)

// WeeklyLimit is the number of completed sessions allowed per calendar week.
const WeeklyLimit = 2

// Phase is a position in the assessment sequence.
type Phase int

const (
	PhaseIntro Phase = iota
	PhaseMood
	PhaseDemographics
	PhaseTraumaHistory
	PhasePDEQ
	PhasePCL5
	PhaseDERS18
	PhaseAAQ
	PhaseSummary
)

var phaseNames = [...]string{
	PhaseIntro:         "intro",
	PhaseMood:          "mood",
	PhaseDemographics:  "demographics",
	PhaseTraumaHistory: "trauma-history",
	PhasePDEQ:          "pdeq",
	PhasePCL5:          "pcl5",
	PhaseDERS18:        "ders18",
	PhaseAAQ:           "aaq",
	PhaseSummary:       "summary",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Instruments lists the instrument codes in administration order.
var Instruments = []string{model.CodePDEQ, model.CodePCL5, model.CodeDERS18, model.CodeAAQ}

// Submitted lists the instruments persisted in the final batch. PDEQ is
// scored for display only.
var Submitted = []string{model.CodePCL5, model.CodeDERS18, model.CodeAAQ}

var instrumentPhase = map[Phase]string{
	PhasePDEQ:   model.CodePDEQ,
	PhasePCL5:   model.CodePCL5,
	PhaseDERS18: model.CodeDERS18,
	PhaseAAQ:    model.CodeAAQ,
}

// TemplateFetcher loads an instrument template by code. A missing template
// is reported with model.ErrNotFound.
type TemplateFetcher interface {
	FetchAssessmentTemplate(ctx context.Context, code string) (*model.AssessmentTemplate, error)
}

// Submitter persists one scored instrument.
type Submitter interface {
	SubmitAssessment(ctx context.Context, sub model.AssessmentSubmission) error
}

// FetchTemplates loads every instrument template concurrently. Templates
// that do not exist are left out of the result; any other failure fails the
// whole fetch.
func FetchTemplates(ctx context.Context, f TemplateFetcher) (map[string]*model.AssessmentTemplate, error) {
	fetched := make([]*model.AssessmentTemplate, len(Instruments))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range Instruments {
		g.Go(func() error {
			t, err := f.FetchAssessmentTemplate(gctx, code)
			if errors.Is(err, model.ErrNotFound) {
				slog.Warn("assessment template absent", "code", code)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w: %w", code, model.ErrTemplateUnavailable, err)
			}
			scoring.LabelPCL5Clusters(t)
			fetched[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*model.AssessmentTemplate, len(Instruments))
	for i, t := range fetched {
		if t != nil {
			out[Instruments[i]] = t
		}
	}
	return out, nil
}

// WeekStart returns the most recent Sunday 00:00 in now's location.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// WeeklyLocked reports whether the user already completed WeeklyLimit
// sessions in the current calendar week.
func WeeklyLocked(history []model.SessionSummary, now time.Time) bool {
	start := WeekStart(now)
	n := 0
	for _, h := range history {
		if h.Status != model.StatusCompleted {
			continue
		}
		if h.Timestamp.Before(start) || h.Timestamp.After(now) {
			continue
		}
		n++
	}
	return n >= WeeklyLimit
}

// Flow is the state of one assessment attempt.
type Flow struct {
	userID    int64
	templates map[string]*model.AssessmentTemplate
	scores    map[string]model.ScoreVector
	locked    bool
	now       func() time.Time

	phase        Phase
	mood         int
	demographics map[string]string
	trauma       map[string]string
}

// NewFlow starts a flow at the intro. The weekly lock is evaluated here
// once and not re-checked.
func NewFlow(userID int64, templates map[string]*model.AssessmentTemplate, history []model.SessionSummary, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	f := &Flow{
		userID:       userID,
		templates:    templates,
		scores:       make(map[string]model.ScoreVector, len(templates)),
		locked:       WeeklyLocked(history, now()),
		now:          now,
		demographics: map[string]string{},
		trauma:       map[string]string{},
	}
	for code, t := range templates {
		f.scores[code] = model.NewScoreVector(len(t.Questions))
	}
	return f
}

// Locked reports whether session entry is locked for this week.
func (f *Flow) Locked() bool { return f.locked }

// Phase returns the current phase.
func (f *Flow) Phase() Phase { return f.phase }

// Mood returns the selected mood, 0 when not yet chosen.
func (f *Flow) Mood() int { return f.mood }

// Template returns the template for an instrument phase, or nil.
func (f *Flow) Template(p Phase) *model.AssessmentTemplate {
	return f.templates[instrumentPhase[p]]
}

// Scores returns a copy of the answers for an instrument.
func (f *Flow) Scores(code string) model.ScoreVector {
	v, ok := f.scores[code]
	if !ok {
		return nil
	}
	out := make(model.ScoreVector, len(v))
	copy(out, v)
	return out
}

// Fields returns a copy of the free-form answers of the demographics or
// trauma-history phase.
func (f *Flow) Fields(p Phase) map[string]string {
	src := f.fieldsFor(p)
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (f *Flow) fieldsFor(p Phase) map[string]string {
	switch p {
	case PhaseDemographics:
		return f.demographics
	case PhaseTraumaHistory:
		return f.trauma
	}
	return nil
}

// SetMood records the mood during the mood phase.
func (f *Flow) SetMood(mood int) error {
	if f.phase != PhaseMood {
		return fmt.Errorf("set mood in %s phase", f.phase)
	}
	if !model.ValidMood(mood) {
		return fmt.Errorf("mood %d out of range", mood)
	}
	f.mood = mood
	return nil
}

// SetField records a free-form answer in the demographics or trauma-history
// phase. An empty value clears it.
func (f *Flow) SetField(key, value string) error {
	fields := f.fieldsFor(f.phase)
	if fields == nil {
		return fmt.Errorf("no free-form fields in %s phase", f.phase)
	}
	if value == "" {
		delete(fields, key)
		return nil
	}
	fields[key] = value
	return nil
}

// Answer records the value of a zero-based item in the current instrument.
func (f *Flow) Answer(item, value int) error {
	code, ok := instrumentPhase[f.phase]
	if !ok {
		return fmt.Errorf("no instrument in %s phase", f.phase)
	}
	t := f.templates[code]
	if item < 0 || item >= len(t.Questions) {
		return fmt.Errorf("%s: item %d out of range", code, item)
	}
	if !validValue(t.Questions[item], value) {
		return fmt.Errorf("%s: value %d not on the item scale", code, value)
	}
	f.scores[code][item] = value
	return nil
}

func validValue(q model.AssessmentQuestion, v int) bool {
	if len(q.Options) == 0 {
		return v >= 0
	}
	for _, o := range q.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// CanAdvance reports whether the current phase's completion predicate holds.
// Instrument phases require every item answered.
func (f *Flow) CanAdvance() bool {
	switch f.phase {
	case PhaseSummary:
		return false
	case PhaseMood:
		return model.ValidMood(f.mood)
	}
	if code, ok := instrumentPhase[f.phase]; ok {
		return f.scores[code].Complete()
	}
	return true
}

// Advance moves to the next phase, skipping instruments whose template is
// absent.
func (f *Flow) Advance() error {
	if f.phase == PhaseSummary {
		return fmt.Errorf("advance from summary: %w", ErrIncomplete)
	}
	if !f.CanAdvance() {
		return fmt.Errorf("advance from %s: %w", f.phase, ErrIncomplete)
	}
	next := f.phase + 1
	for next < PhaseSummary && f.absent(next) {
		next++
	}
	f.phase = next
	return nil
}

// Back returns to the previous present phase. Answers are kept.
func (f *Flow) Back() error {
	if f.phase == PhaseIntro {
		return errors.New("already at the first phase")
	}
	prev := f.phase - 1
	for prev > PhaseIntro && f.absent(prev) {
		prev--
	}
	f.phase = prev
	return nil
}

func (f *Flow) absent(p Phase) bool {
	code, ok := instrumentPhase[p]
	if !ok {
		return false
	}
	_, present := f.templates[code]
	return !present
}

// Results scores every present instrument, PDEQ included.
func (f *Flow) Results() map[string]scoring.Result {
	out := make(map[string]scoring.Result, len(f.templates))
	for code, t := range f.templates {
		out[code] = scoring.Score(t, f.scores[code])
	}
	return out
}

// Submit persists the batch. It is only allowed from the summary phase and
// may be retried as a whole after ErrBatchFailed.
func (f *Flow) Submit(ctx context.Context, s Submitter) error {
	if f.phase != PhaseSummary {
		return fmt.Errorf("submit from %s: %w", f.phase, ErrIncomplete)
	}
	return SubmitBatch(ctx, s, f.userID, f.templates, f.scores, f.now())
}

// SubmitBatch submits PCL-5, DERS-18 and AAQ concurrently. Instruments
// without a template are skipped. Any failure is reported as ErrBatchFailed
// without a per-instrument breakdown.
func SubmitBatch(ctx context.Context, s Submitter, userID int64, templates map[string]*model.AssessmentTemplate,
	scores map[string]model.ScoreVector, now time.Time) error {
	var g errgroup.Group
	for _, code := range Submitted {
		t, ok := templates[code]
		if !ok {
			slog.Info("skipping submission of absent instrument", "code", code)
			continue
		}
		sub := Payload(userID, t, scores[code], now)
		g.Go(func() error {
			if err := s.SubmitAssessment(ctx, sub); err != nil {
				return fmt.Errorf("submit %s: %w", code, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("assessment batch failed", "user", userID, "error", err)
		return ErrBatchFailed
	}
	return nil
}

// Payload builds the submission for one instrument.
func Payload(userID int64, t *model.AssessmentTemplate, scores model.ScoreVector, now time.Time) model.AssessmentSubmission {
	items := make([]model.AssessmentItem, 0, len(scores))
	for i, v := range scores {
		if v == model.Unanswered {
			continue
		}
		id := fmt.Sprintf("q%d", i+1)
		if i < len(t.Questions) && t.Questions[i].ID != "" {
			id = t.Questions[i].ID
		}
		items = append(items, model.AssessmentItem{QuestionID: id, Value: v})
	}
	return model.AssessmentSubmission{
		UserID:      userID,
		TemplateID:  t.ID,
		TestType:    t.Code,
		TotalScore:  scoring.Score(t, scores).Total,
		Items:       items,
		SubmittedAt: now,
	}
}
