package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pavelanni/pathway/internal/assessment"
	"github.com/pavelanni/pathway/internal/commit"
	"github.com/pavelanni/pathway/internal/engine"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/reminder"
)

var errNoRun = errors.New("no session is running")

type commitResponse struct {
	Outcome string                       `json:"outcome"`
	Record  *model.SessionProgressRecord `json:"record,omitempty"`
	View    engine.View                  `json:"view"`
}

func (h *Handler) run(userID int64) *engine.Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[userID]
}

func (h *Handler) setRun(userID int64, run *engine.Run) {
	h.mu.Lock()
	prev := h.runs[userID]
	h.runs[userID] = run
	h.mu.Unlock()
	if prev != nil && prev != run {
		prev.Close()
	}
}

func (h *Handler) dropRun(userID int64) {
	h.mu.Lock()
	run := h.runs[userID]
	delete(h.runs, userID)
	h.mu.Unlock()
	if run != nil {
		run.Close()
	}
}

// currentRun writes 404 and returns nil when the user has no mounted session.
func (h *Handler) currentRun(w http.ResponseWriter, r *http.Request) *engine.Run {
	user := model.UserFromContext(r.Context())
	run := h.run(user.ID)
	if run == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errNoRun.Error()})
	}
	return run
}

func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	n, err := sessionNumberParam(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	profile, err := h.store.FetchUserProfile(ctx, user.ID)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if n > max(profile.CurrentSession, 1) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error: fmt.Sprintf("session %d is not available yet", n),
		})
		return
	}
	if assessment.WeeklyLocked(profile.SessionHistory, h.now()) {
		writeError(w, r, assessment.ErrLocked, http.StatusLocked)
		return
	}

	us := h.store.ForUser(user.ID)
	run, err := engine.Mount(ctx, engine.Deps{
		Templates:   h.store,
		Checkpoints: us,
		Remote:      h.store,
		Local:       h.store,
		Reminders:   reminder.New(us, h.now),
		Now:         h.now,
	}, profile, n)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	h.setRun(user.ID, run)
	writeJSON(w, http.StatusCreated, run.View())
}

func (h *Handler) handleRunView(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunMood(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	var req struct {
		Mood int `json:"mood"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := run.SelectMood(r.Context(), req.Mood); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunAnswer(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "key is required"})
		return
	}
	if err := run.Answer(req.Key, req.Value); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunInteract(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	var a engine.Action
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := run.Interact(a); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunContinue(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	if err := run.Continue(r.Context()); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunBack(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	if err := run.Back(r.Context()); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunRestart(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	if err := run.Restart(); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (h *Handler) handleRunFinish(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	var req struct {
		MoodAfter int `json:"moodAfter"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, http.StatusBadRequest)
			return
		}
	}
	out, err := run.Finish(r.Context(), req.MoodAfter)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Outcome: out.String(), Record: run.Record(), View: run.View()})
}

func (h *Handler) handleRunExit(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	run := h.currentRun(w, r)
	if run == nil {
		return
	}
	out, err := run.Exit(r.Context())
	if err != nil {
		// The run stays mounted so the exit can be retried.
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	resp := commitResponse{Outcome: out.String(), View: run.View()}
	if out != commit.OutcomeSkipped {
		resp.Record = run.Record()
	}
	h.dropRun(user.ID)
	writeJSON(w, http.StatusOK, resp)
}
