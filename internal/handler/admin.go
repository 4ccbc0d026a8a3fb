package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/store"
)

const maxImportSize = 10 << 20

func (h *Handler) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListSessionTemplates(r.Context())
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.SessionTemplate{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAdminPutSession(w http.ResponseWriter, r *http.Request) {
	n, err := sessionNumberParam(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	var t model.SessionTemplate
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	t.SessionNumber = n
	if err := h.store.PutSessionTemplate(r.Context(), t); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	slog.Info("session template saved", "session", n, "steps", len(t.Steps))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminPutAssessment(w http.ResponseWriter, r *http.Request) {
	var t model.AssessmentTemplate
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	t.Code = chi.URLParam(r, "code")
	id, err := h.store.PutAssessmentTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	slog.Info("assessment template saved", "code", t.Code, "id", id)
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

type importResponse struct {
	Duplicate   bool `json:"duplicate"`
	Sessions    int  `json:"sessions"`
	Assessments int  `json:"assessments"`
}

// handleAdminImport loads a template bundle from the request body. The
// bundle name comes from the name query parameter and selects the format;
// re-uploading identical content under the same name is a no-op.
func (h *Handler) handleAdminImport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.yaml"
		if strings.Contains(r.Header.Get("Content-Type"), "json") {
			name = "upload.json"
		}
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read bundle"})
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetImportedFileHash(name)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if storedHash == hash {
		writeJSON(w, http.StatusOK, importResponse{Duplicate: true})
		return
	}

	bundle, err := store.ParseTemplateBundle(name, data)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.store.ImportBundle(r.Context(), bundle); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if err := h.store.SetImportedFileHash(name, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported bundle via admin", "name", name)
	writeJSON(w, http.StatusOK, importResponse{
		Sessions:    len(bundle.Sessions),
		Assessments: len(bundle.Assessments),
	})
}

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password required"})
		return
	}
	switch req.Role {
	case "":
		req.Role = model.UserRoleClient
	case model.UserRoleClient, model.UserRoleAdmin:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role " + string(req.Role)})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		writeJSON(w, http.StatusConflict, errorResponse{Error: "failed to create user: " + err.Error()})
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid user ID")
	}
	return id, nil
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.store.ToggleUserActive(id); err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		return
	}
	if !user.Active {
		h.dropRun(id)
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleExportUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	export, err := h.store.ExportProgress(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
