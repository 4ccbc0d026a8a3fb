// Package commit snapshots a session into a progress record and persists
// it, falling back to local storage when the remote store fails.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/session"
)

// ErrLocalSaveFailed is returned only when neither remote nor local
// persistence accepted the record. Captured answers stay in memory.
var ErrLocalSaveFailed = errors.New("could not save session progress")

// Submitter persists progress records remotely.
type Submitter interface {
	SubmitSessionProgress(ctx context.Context, rec model.SessionProgressRecord) error
}

// FallbackStore keeps records that could not be submitted.
type FallbackStore interface {
	AppendFallback(ctx context.Context, userID int64, rec model.SessionProgressRecord) error
}

// Outcome describes where a record ended up.
type Outcome int

const (
	OutcomeRemote Outcome = iota
	OutcomeLocal
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRemote:
		return "remote"
	case OutcomeLocal:
		return "local"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Build snapshots the machine into a record. Only steps up to and including
// the current one are included; each step's inputs are limited to its
// declared questions that have an answer.
func Build(m *session.Machine, userID int64, status model.ProgressStatus, moodAfter int, now time.Time) model.SessionProgressRecord {
	tmpl := m.Template()
	inputs := m.Inputs()

	last := m.Index()
	if m.Phase() == session.PhaseSummary {
		last = len(tmpl.Steps) - 1
	}

	var steps []model.StepProgress
	for i := 0; i <= last && i < len(tmpl.Steps); i++ {
		step := tmpl.Steps[i]
		timing := m.Timing(i)
		start := timing.Start
		if start.IsZero() {
			start = m.MountedAt()
		}
		stepStatus := model.StatusCompleted
		if i == last && m.Phase() == session.PhaseStep && status != model.StatusCompleted {
			stepStatus = model.StatusInProgress
		}
		steps = append(steps, model.StepProgress{
			StepID:    session.StepKey(step, i),
			StepTitle: step.Title,
			Status:    stepStatus,
			StartTime: start,
			EndTime:   timing.End,
			Inputs:    declaredAnswers(step, inputs),
		})
	}

	reflections := make(map[string]any, len(inputs)+1)
	for k, v := range inputs {
		reflections[k] = v
	}
	reflections["objective"] = tmpl.Objective

	return model.SessionProgressRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		SessionNumber: tmpl.SessionNumber,
		SessionTitle:  tmpl.Title,
		MoodBefore:    m.Mood(),
		MoodAfter:     moodAfter,
		Reflections:   reflections,
		StepProgress:  steps,
		Status:        status,
		StartTime:     m.MountedAt(),
		EndTime:       now,
	}
}

func declaredAnswers(step model.Step, inputs model.StepInputs) map[string]any {
	out := map[string]any{}
	for _, q := range step.Questions {
		v, ok := inputs[q.ID]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		out[q.ID] = v
	}
	return out
}

// Pipeline submits progress records for one user.
type Pipeline struct {
	remote  Submitter
	local   FallbackStore
	history []model.SessionSummary
}

// NewPipeline creates a pipeline that knows the user's session history.
func NewPipeline(remote Submitter, local FallbackStore, history []model.SessionSummary) *Pipeline {
	return &Pipeline{remote: remote, local: local, history: history}
}

// Completed reports whether the session is already known as completed.
func (p *Pipeline) Completed(sessionNumber int) bool {
	for _, h := range p.history {
		if h.SessionNumber == sessionNumber && h.Status == model.StatusCompleted {
			return true
		}
	}
	return false
}

// Commit persists rec. Remote failures are recovered locally and never
// returned; only a failed local write yields ErrLocalSaveFailed.
func (p *Pipeline) Commit(ctx context.Context, rec model.SessionProgressRecord) (Outcome, error) {
	if p.Completed(rec.SessionNumber) {
		slog.Info("session already completed, skipping commit",
			"session", rec.SessionNumber, "status", rec.Status)
		return OutcomeSkipped, nil
	}

	err := p.remote.SubmitSessionProgress(ctx, rec)
	if err == nil {
		if rec.Status == model.StatusCompleted {
			p.history = append(p.history, model.SessionSummary{
				SessionNumber: rec.SessionNumber,
				Status:        model.StatusCompleted,
				Timestamp:     rec.EndTime,
			})
		}
		slog.Info("session progress saved", "session", rec.SessionNumber, "status", rec.Status,
			"steps", len(rec.StepProgress))
		return OutcomeRemote, nil
	}

	slog.Warn("remote save failed, keeping record locally", "session", rec.SessionNumber, "error", err)
	if lerr := p.local.AppendFallback(ctx, rec.UserID, rec); lerr != nil {
		slog.Error("local fallback save failed", "session", rec.SessionNumber, "error", lerr)
		return OutcomeLocal, fmt.Errorf("%w: %v", ErrLocalSaveFailed, lerr)
	}
	return OutcomeLocal, nil
}
