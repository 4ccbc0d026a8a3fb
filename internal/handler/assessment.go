package handler

import (
	"net/http"
	"sync"

	"github.com/pavelanni/pathway/internal/assessment"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/scoring"
)

// flowState serializes requests against one user's assessment flow.
type flowState struct {
	mu        sync.Mutex
	flow      *assessment.Flow
	submitted bool
}

type assessmentView struct {
	Phase      string                    `json:"phase"`
	Locked     bool                      `json:"locked"`
	Mood       int                       `json:"mood,omitempty"`
	Fields     map[string]string         `json:"fields,omitempty"`
	Template   *model.AssessmentTemplate `json:"template,omitempty"`
	Scores     model.ScoreVector         `json:"scores,omitempty"`
	CanAdvance bool                      `json:"canAdvance"`
	Results    map[string]scoring.Result `json:"results,omitempty"`
	Submitted  bool                      `json:"submitted"`
}

func (st *flowState) view() assessmentView {
	f := st.flow
	p := f.Phase()
	v := assessmentView{
		Phase:      p.String(),
		Locked:     f.Locked(),
		Mood:       f.Mood(),
		CanAdvance: f.CanAdvance(),
		Submitted:  st.submitted,
	}
	if p == assessment.PhaseDemographics || p == assessment.PhaseTraumaHistory {
		v.Fields = f.Fields(p)
	}
	if t := f.Template(p); t != nil {
		v.Template = t
		v.Scores = f.Scores(t.Code)
	}
	if p == assessment.PhaseSummary {
		v.Results = f.Results()
	}
	return v
}

// flowFor returns the user's flow, starting a new one when fresh is set or
// none exists. Templates and the weekly lock are resolved at start.
func (h *Handler) flowFor(w http.ResponseWriter, r *http.Request, fresh bool) *flowState {
	ctx := r.Context()
	user := model.UserFromContext(ctx)

	h.mu.Lock()
	st := h.flows[user.ID]
	h.mu.Unlock()
	if st != nil && !fresh {
		return st
	}

	templates, err := assessment.FetchTemplates(ctx, h.store)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return nil
	}
	profile, err := h.store.FetchUserProfile(ctx, user.ID)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return nil
	}
	st = &flowState{flow: assessment.NewFlow(user.ID, templates, profile.SessionHistory, h.now)}

	h.mu.Lock()
	h.flows[user.ID] = st
	h.mu.Unlock()
	return st
}

// existingFlow writes 404 and returns nil when no flow was started.
func (h *Handler) existingFlow(w http.ResponseWriter, r *http.Request) *flowState {
	user := model.UserFromContext(r.Context())
	h.mu.Lock()
	st := h.flows[user.ID]
	h.mu.Unlock()
	if st == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no assessment in progress"})
	}
	return st
}

func (h *Handler) handleAssessment(w http.ResponseWriter, r *http.Request) {
	st := h.flowFor(w, r, false)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	writeJSON(w, http.StatusOK, st.view())
}

func (h *Handler) handleAssessmentRestart(w http.ResponseWriter, r *http.Request) {
	st := h.flowFor(w, r, true)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	writeJSON(w, http.StatusOK, st.view())
}

// mutateFlow applies fn under the flow lock and responds with the new view.
func (h *Handler) mutateFlow(w http.ResponseWriter, r *http.Request, fn func(*assessment.Flow) error) {
	st := h.existingFlow(w, r)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := fn(st.flow); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, st.view())
}

func (h *Handler) handleAssessmentMood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood int `json:"mood"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	h.mutateFlow(w, r, func(f *assessment.Flow) error { return f.SetMood(req.Mood) })
}

func (h *Handler) handleAssessmentField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	h.mutateFlow(w, r, func(f *assessment.Flow) error { return f.SetField(req.Key, req.Value) })
}

func (h *Handler) handleAssessmentAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item  int `json:"item"`
		Value int `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	h.mutateFlow(w, r, func(f *assessment.Flow) error { return f.Answer(req.Item, req.Value) })
}

func (h *Handler) handleAssessmentAdvance(w http.ResponseWriter, r *http.Request) {
	h.mutateFlow(w, r, func(f *assessment.Flow) error { return f.Advance() })
}

func (h *Handler) handleAssessmentBack(w http.ResponseWriter, r *http.Request) {
	h.mutateFlow(w, r, func(f *assessment.Flow) error { return f.Back() })
}

func (h *Handler) handleAssessmentSubmit(w http.ResponseWriter, r *http.Request) {
	st := h.existingFlow(w, r)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.submitted {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "assessment already submitted"})
		return
	}
	if err := st.flow.Submit(r.Context(), h.store); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	st.submitted = true
	writeJSON(w, http.StatusOK, st.view())
}
