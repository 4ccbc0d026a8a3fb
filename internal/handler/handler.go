package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/pavelanni/pathway/internal/assessment"
	"github.com/pavelanni/pathway/internal/commit"
	"github.com/pavelanni/pathway/internal/engine"
	appI18n "github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/session"
	"github.com/pavelanni/pathway/internal/store"
)

// Speaker synthesizes narration audio. *llm.Client implements it.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	speech Speaker
	config model.Config
	now    func() time.Time

	mu    sync.Mutex
	runs  map[int64]*engine.Run
	flows map[int64]*flowState
}

// New creates a new Handler. speech may be nil to disable /api/speech.
func New(s *store.Store, speech Speaker, cfg model.Config) *Handler {
	return &Handler{
		store:  s,
		speech: speech,
		config: cfg,
		now:    time.Now,
		runs:   map[int64]*engine.Run{},
		flows:  map[int64]*flowState{},
	}
}

// Router returns the complete HTTP handler with logging, recovery and
// localization middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(h.config.Lang))
	h.Routes(r)
	return r
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)

			r.Get("/profile", h.handleProfile)
			r.Put("/profile/schedule", h.handleSetSchedule)
			r.Put("/profile/narration", h.handleSetNarration)
			r.Get("/notifications", h.handleListNotifications)
			r.Delete("/notifications/{id}", h.handleDeleteNotification)

			r.Get("/sessions/{n}/template", h.handleSessionTemplate)
			r.Post("/sessions/{n}/run", h.handleMount)

			r.Get("/run", h.handleRunView)
			r.Post("/run/mood", h.handleRunMood)
			r.Post("/run/answer", h.handleRunAnswer)
			r.Post("/run/interact", h.handleRunInteract)
			r.Post("/run/continue", h.handleRunContinue)
			r.Post("/run/back", h.handleRunBack)
			r.Post("/run/restart", h.handleRunRestart)
			r.Post("/run/finish", h.handleRunFinish)
			r.Post("/run/exit", h.handleRunExit)

			r.Get("/assessment", h.handleAssessment)
			r.Post("/assessment/restart", h.handleAssessmentRestart)
			r.Post("/assessment/mood", h.handleAssessmentMood)
			r.Post("/assessment/field", h.handleAssessmentField)
			r.Post("/assessment/answer", h.handleAssessmentAnswer)
			r.Post("/assessment/advance", h.handleAssessmentAdvance)
			r.Post("/assessment/back", h.handleAssessmentBack)
			r.Post("/assessment/submit", h.handleAssessmentSubmit)

			r.Post("/speech", h.handleSpeech)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/sessions", h.handleAdminListSessions)
				r.Put("/sessions/{n}", h.handleAdminPutSession)
				r.Put("/assessments/{code}", h.handleAdminPutAssessment)
				r.Post("/import", h.handleAdminImport)
				r.Get("/users", h.handleAdminListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
				r.Get("/users/{userID}/export", h.handleExportUser)
			})
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Quota bool   `json:"quota,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps engine errors to statuses and localized messages.
// Unclassified errors get fallback.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	ctx := r.Context()
	switch {
	case errors.Is(err, session.ErrBlocked), errors.Is(err, assessment.ErrIncomplete):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrTemplateUnavailable):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: appI18n.T(ctx, "TemplateUnavailable")})
	case errors.Is(err, commit.ErrLocalSaveFailed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: appI18n.T(ctx, "SaveFailed")})
	case errors.Is(err, assessment.ErrBatchFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: appI18n.T(ctx, "BatchFailed")})
	case errors.Is(err, assessment.ErrLocked):
		writeJSON(w, http.StatusLocked, errorResponse{
			Error: appI18n.Td(ctx, "WeeklyLocked", map[string]any{"Limit": assessment.WeeklyLimit}),
		})
	case errors.Is(err, narration.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: appI18n.T(ctx, "QuotaMuteOffer"), Quota: true})
	default:
		if fallback >= http.StatusInternalServerError {
			slog.Error("request failed", "path", r.URL.Path, "error", err)
			writeJSON(w, fallback, errorResponse{Error: "internal error"})
			return
		}
		writeJSON(w, fallback, errorResponse{Error: err.Error()})
	}
}

func sessionNumberParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n <= 0 {
		return 0, errors.New("invalid session number")
	}
	return n, nil
}

// profileResponse also carries the narration settings clients need to run
// the static tier themselves.
type profileResponse struct {
	User            *model.User        `json:"user"`
	Profile         *model.UserProfile `json:"profile"`
	NarrationMuted  bool               `json:"narrationMuted"`
	WeeklyLocked    bool               `json:"weeklyLocked"`
	AudioBaseURL    string             `json:"audioBaseUrl,omitempty"`
	StaticTimeoutMS int64              `json:"staticTimeoutMs"`
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	profile, err := h.store.FetchUserProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	muted, err := h.store.ForUser(user.ID).NarrationMuted(r.Context())
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		User:            user,
		Profile:         profile,
		NarrationMuted:  muted,
		WeeklyLocked:    assessment.WeeklyLocked(profile.SessionHistory, h.now()),
		AudioBaseURL:    h.config.AudioBaseURL,
		StaticTimeoutMS: h.config.StaticTimeout.Milliseconds(),
	})
}

func (h *Handler) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var pref *model.SchedulePreference
	if err := decodeJSON(r, &pref); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if pref != nil && (pref.Hour < 0 || pref.Hour > 23) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "hour must be between 0 and 23"})
		return
	}
	if err := h.store.SetSchedulePreference(r.Context(), user.ID, pref); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetNarration(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.store.ForUser(user.ID).SetNarrationMuted(r.Context(), req.Muted); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	list, err := h.store.ListNotifications(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.store.DeleteNotification(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessionTemplate(w http.ResponseWriter, r *http.Request) {
	n, err := sessionNumberParam(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	tmpl, err := h.store.FetchSessionTemplate(r.Context(), n)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	session.Normalize(tmpl)
	writeJSON(w, http.StatusOK, tmpl)
}
