package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/session"
)

// pcmContentType describes the raw audio returned by /api/speech.
var pcmContentType = fmt.Sprintf("audio/L16; rate=%d; channels=1", narration.SampleRate)

type speechRequest struct {
	Text          string `json:"text"`
	SessionNumber int    `json:"sessionNumber"`
	StepID        string `json:"stepId"`
}

// handleSpeech synthesizes narration for free text or for a step of a
// session template. It answers 204 when there is nothing to play.
func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	if h.speech == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "speech synthesis is not configured"})
		return
	}

	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	muted, err := h.store.ForUser(user.ID).NarrationMuted(ctx)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if muted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.SessionNumber > 0 {
		text, err = h.stepScript(r, req.SessionNumber, req.StepID)
		if err != nil {
			writeError(w, r, err, http.StatusBadRequest)
			return
		}
	}
	if text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	audio, err := h.speech.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("speech synthesis failed", "user", user.ID, "error", err)
		writeError(w, r, err, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", pcmContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.Debug("speech client went away", "error", err)
	}
}

func (h *Handler) stepScript(r *http.Request, sessionNumber int, stepID string) (string, error) {
	tmpl, err := h.store.FetchSessionTemplate(r.Context(), sessionNumber)
	if err != nil {
		return "", err
	}
	session.Normalize(tmpl)
	for i, step := range tmpl.Steps {
		if session.StepKey(step, i) == stepID {
			return narration.Script(step)
		}
	}
	return "", fmt.Errorf("session %d has no step %q: %w", sessionNumber, stepID, model.ErrNotFound)
}
