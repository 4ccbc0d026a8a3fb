package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/store"
)

// fixedNow is a Wednesday, so the current week started three days ago.
var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.Local)

type fakeSpeaker struct {
	texts []string
	err   error
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte{1, 0, 2, 0}, nil
}

type testServer struct {
	h      *Handler
	store  *store.Store
	router http.Handler
}

func newTestServer(t *testing.T, speech Speaker) *testServer {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := New(s, speech, model.Config{Lang: "en"})
	h.now = func() time.Time { return fixedNow }
	return &testServer{h: h, store: s, router: h.Router()}
}

func (ts *testServer) createUser(t *testing.T, username, password string, role model.UserRole) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id, err := ts.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	require.NoError(t, err)
	return id
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) client(t *testing.T) (int64, string) {
	t.Helper()
	id := ts.createUser(t, "client", "secret", model.UserRoleClient)
	return id, ts.login(t, "client", "secret")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sessionOne() model.SessionTemplate {
	return model.SessionTemplate{
		SessionNumber: 1,
		Title:         "Getting started",
		Objective:     "Notice how you feel",
		Steps: []model.Step{
			{StepID: "s1", Type: model.StepIntro, Title: "Welcome", Script: "Take a slow breath."},
			{StepID: "s2", Type: model.StepQuestionnaire, Title: "Check-in", Questions: []model.StepQuestion{
				{ID: "q1", Text: "How tense are you?", Type: model.QuestionLikert},
			}},
		},
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret", model.UserRoleClient)

	rec := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password.", decode[errorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := ts.login(t, "alice", "secret")
	rec = ts.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentSession":1`)

	rec = ts.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRunToCompletion(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.PutSessionTemplate(ctx, sessionOne()))
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "mood-check", decode[map[string]any](t, rec)["phase"])

	rec = ts.do(t, http.MethodPost, "/api/run/mood", token, map[string]int{"mood": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/run/mood", token, map[string]int{"mood": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "step", decode[map[string]any](t, rec)["phase"])

	rec = ts.do(t, http.MethodPost, "/api/run/finish", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/run/continue", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/run/answer", token, map[string]any{"key": "q1", "value": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/run/continue", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reflection-summary", decode[map[string]any](t, rec)["phase"])

	rec = ts.do(t, http.MethodPost, "/api/run/finish", token, map[string]int{"moodAfter": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[commitResponse](t, rec)
	assert.Equal(t, "remote", resp.Outcome)
	require.NotNil(t, resp.Record)
	assert.Equal(t, model.StatusCompleted, resp.Record.Status)
	assert.True(t, resp.View.Done)

	records, err := ts.store.ListSessionProgress(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].MoodAfter)
	assert.EqualValues(t, 7, records[0].Reflections["q1"])

	profile, err := ts.store.FetchUserProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.CurrentSession)

	rec = ts.do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]model.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, "Time for session 2", notes[0].Title)
	assert.Equal(t, "2", notes[0].Opts["session"])
}

func TestMountRejections(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "This content could not be loaded. Please try again.", decode[errorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/api/sessions/3/run", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sessions/zero/run", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, ts.store.PutSessionTemplate(ctx, sessionOne()))
	for i := range 2 {
		require.NoError(t, ts.store.SubmitSessionProgress(ctx, model.SessionProgressRecord{
			ID:            fmt.Sprintf("done-%d", i),
			UserID:        userID,
			SessionNumber: 1,
			Status:        model.StatusCompleted,
			StartTime:     fixedNow.Add(-time.Hour),
			EndTime:       fixedNow.Add(-time.Duration(i+1) * time.Hour),
		}))
	}
	rec = ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "completed 2 sessions")
}

func TestRunExitSavesProgress(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.PutSessionTemplate(ctx, sessionOne()))
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodGet, "/api/run", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/run/mood", token, map[string]int{"mood": 2}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/run/continue", token, nil).Code)

	rec = ts.do(t, http.MethodPost, "/api/run/exit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[commitResponse](t, rec)
	assert.Equal(t, "remote", resp.Outcome)
	require.NotNil(t, resp.Record)
	assert.Equal(t, model.StatusInProgress, resp.Record.Status)

	rec = ts.do(t, http.MethodGet, "/api/run", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cp, err := ts.store.ForUser(userID).GetCheckpoint(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "s2", cp.StepID)

	rec = ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "step", view["phase"])
	assert.EqualValues(t, 1, view["index"])
}

func TestRunExitAtMoodCheck(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.store.PutSessionTemplate(ctx, sessionOne()))
	userID, token := ts.client(t)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sessions/1/run", token, nil).Code)
	rec := ts.do(t, http.MethodPost, "/api/run/exit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "skipped", decode[commitResponse](t, rec).Outcome)

	records, err := ts.store.ListSessionProgress(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func aaqTemplate() model.AssessmentTemplate {
	opts := make([]model.AssessmentOption, 0, 7)
	for v := 1; v <= 7; v++ {
		opts = append(opts, model.AssessmentOption{Label: fmt.Sprint(v), Value: v})
	}
	return model.AssessmentTemplate{
		Code:  model.CodeAAQ,
		Title: "AAQ-II",
		Questions: []model.AssessmentQuestion{
			{ID: "aaq1", Text: "My painful memories prevent me from living a fulfilling life.", Options: opts},
			{ID: "aaq2", Text: "I am afraid of my feelings.", Options: opts},
		},
	}
}

func TestAssessmentFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	_, err := ts.store.PutAssessmentTemplate(ctx, aaqTemplate())
	require.NoError(t, err)
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/assessment", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "intro", decode[assessmentView](t, rec).Phase)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil).Code)
	rec = ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "mood is required")

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/mood", token, map[string]int{"mood": 3}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil).Code)

	rec = ts.do(t, http.MethodPost, "/api/assessment/field", token, map[string]string{"key": "age", "value": "34"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "34", decode[assessmentView](t, rec).Fields["age"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil).Code)
	rec = ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[assessmentView](t, rec)
	assert.Equal(t, "aaq", view.Phase, "absent instruments are skipped")
	require.NotNil(t, view.Template)
	assert.Equal(t, model.ScoreVector{-1, -1}, view.Scores)

	rec = ts.do(t, http.MethodPost, "/api/assessment/submit", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/assessment/answer", token, map[string]int{"item": 0, "value": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/answer", token, map[string]int{"item": 0, "value": 5}).Code)
	rec = ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/assessment/answer", token, map[string]int{"item": 1, "value": 6}).Code)

	rec = ts.do(t, http.MethodPost, "/api/assessment/advance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[assessmentView](t, rec)
	assert.Equal(t, "summary", view.Phase)
	assert.Equal(t, 11, view.Results[model.CodeAAQ].Total)

	rec = ts.do(t, http.MethodPost, "/api/assessment/submit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[assessmentView](t, rec).Submitted)

	results, err := ts.store.ListAssessmentResults(ctx, userID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 11, results[0].TotalScore)
	assert.Equal(t, "aaq1", results[0].Items[0].QuestionID)

	rec = ts.do(t, http.MethodPost, "/api/assessment/submit", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/assessment/restart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "intro", decode[assessmentView](t, rec).Phase)
}

func TestSpeech(t *testing.T) {
	speaker := &fakeSpeaker{}
	ts := newTestServer(t, speaker)
	ctx := context.Background()
	require.NoError(t, ts.store.PutSessionTemplate(ctx, sessionOne()))
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{Text: "Hello there"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "audio/L16"))
	assert.Equal(t, []byte{1, 0, 2, 0}, rec.Body.Bytes())

	rec = ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{SessionNumber: 1, StepID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Hello there", "Take a slow breath."}, speaker.texts)

	rec = ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{SessionNumber: 1, StepID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	speaker.err = fmt.Errorf("%w: out of credits", narration.ErrQuotaExceeded)
	rec = ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{Text: "Hello"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.True(t, resp.Quota)
	assert.Equal(t, "Voice narration is unavailable right now. Mute narration?", resp.Error)

	rec = ts.do(t, http.MethodPut, "/api/profile/narration", token, map[string]bool{"muted": true})
	require.Equal(t, http.StatusNoContent, rec.Code)
	muted, err := ts.store.ForUser(userID).NarrationMuted(ctx)
	require.NoError(t, err)
	assert.True(t, muted)

	calls := len(speaker.texts)
	rec = ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{Text: "Hello"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, speaker.texts, calls)
}

func TestSpeechDisabled(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.client(t)
	rec := ts.do(t, http.MethodPost, "/api/speech", token, speechRequest{Text: "Hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchedulePreference(t *testing.T) {
	ts := newTestServer(t, nil)
	userID, token := ts.client(t)

	rec := ts.do(t, http.MethodPut, "/api/profile/schedule", token, model.SchedulePreference{Hour: 30})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pref := model.SchedulePreference{Weekdays: []time.Weekday{time.Monday, time.Thursday}, Hour: 9}
	rec = ts.do(t, http.MethodPut, "/api/profile/schedule", token, pref)
	require.Equal(t, http.StatusNoContent, rec.Code)

	profile, err := ts.store.FetchUserProfile(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, profile.SchedulePreference)
	assert.Equal(t, pref, *profile.SchedulePreference)
}

func TestAdminRequiresRole(t *testing.T) {
	ts := newTestServer(t, nil)
	_, clientToken := ts.client(t)
	ts.createUser(t, "admin", "admin", model.UserRoleAdmin)
	adminToken := ts.login(t, "admin", "admin")

	rec := ts.do(t, http.MethodGet, "/api/admin/users", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)

	rec = ts.do(t, http.MethodPost, "/api/admin/users", adminToken, createUserRequest{Username: "bob", Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bob := decode[model.User](t, rec)
	assert.Equal(t, model.UserRoleClient, bob.Role)
	assert.Equal(t, "bob", bob.DisplayName)

	rec = ts.do(t, http.MethodPost, "/api/admin/users", adminToken, createUserRequest{Username: "eve", Password: "pw", Role: "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bobToken := ts.login(t, "bob", "pw")
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/toggle", bob.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.User](t, rec).Active)
	rec = ts.do(t, http.MethodGet, "/api/profile", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d/export", bob.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", decode[model.ProgressExport](t, rec).Username)

	rec = ts.do(t, http.MethodGet, "/api/admin/users/999/export", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

const bundleYAML = `sessions:
  - sessionNumber: 1
    title: Getting started
    objective: Notice how you feel
    steps:
      - stepId: s1
        type: intro
        title: Welcome
assessments:
  - code: AAQ-V1
    title: AAQ-II
    questions:
      - id: aaq1
        text: I am afraid of my feelings.
        options:
          - {label: never, value: 1}
          - {label: always, value: 7}
`

func TestAdminImportAndTemplates(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	ts.createUser(t, "admin", "admin", model.UserRoleAdmin)
	token := ts.login(t, "admin", "admin")

	importBundle := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/import?name=intro.yaml", strings.NewReader(bundleYAML))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec
	}

	rec := importBundle()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importResponse{Sessions: 1, Assessments: 1}, decode[importResponse](t, rec))

	rec = importBundle()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[importResponse](t, rec).Duplicate)

	aaq, err := ts.store.FetchAssessmentTemplate(ctx, model.CodeAAQ)
	require.NoError(t, err)
	assert.Len(t, aaq.Questions, 1)

	tmpl := sessionOne()
	tmpl.SessionNumber = 99
	rec = ts.do(t, http.MethodPut, "/api/admin/sessions/2", token, tmpl)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sessions/2/template", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.SessionTemplate](t, rec)
	assert.Equal(t, 2, got.SessionNumber)
	assert.Len(t, got.Steps, 2)

	rec = ts.do(t, http.MethodGet, "/api/admin/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.SessionTemplate](t, rec), 2)

	rec = ts.do(t, http.MethodPut, "/api/admin/assessments/"+model.CodePCL5, token, aaqTemplate())
	require.Equal(t, http.StatusOK, rec.Code)
	pcl, err := ts.store.FetchAssessmentTemplate(ctx, model.CodePCL5)
	require.NoError(t, err)
	assert.Equal(t, model.CodePCL5, pcl.Code)
}
