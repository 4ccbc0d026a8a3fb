package model

import (
	"context"
	"errors"
	"time"
)

// ErrTemplateUnavailable is returned when a session or assessment template
// cannot be fetched (missing or transport failure).
var ErrTemplateUnavailable = errors.New("template unavailable")

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleClient is a client going through intake and sessions.
	UserRoleClient UserRole = "client"
	// UserRoleAdmin manages templates and users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// StepType is the kind of a session step.
type StepType string

const (
	StepIntro         StepType = "intro"
	StepReflection    StepType = "reflection"
	StepQuestionnaire StepType = "questionnaire"
	StepExercise      StepType = "exercise"
	StepMeditation    StepType = "meditation"
	StepClosing       StepType = "closing"
	StepOutro         StepType = "outro"
	StepReview        StepType = "review"
)

// QuestionType is the answer format of a step question.
type QuestionType string

const (
	QuestionText   QuestionType = "text"
	QuestionLikert QuestionType = "likert"
	QuestionChoice QuestionType = "choice"
)

// LikertMin and LikertMax bound answers to Likert step questions.
const (
	LikertMin = 1
	LikertMax = 10
)

// StepQuestion is a single prompt inside a questionnaire or reflection step.
type StepQuestion struct {
	ID      string       `json:"questionId" yaml:"questionId"`
	Text    string       `json:"text" yaml:"text"`
	Type    QuestionType `json:"type" yaml:"type"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
}

// Step is one ordered element of a session template.
type Step struct {
	StepID      string         `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	DocID       string         `json:"_id,omitempty" yaml:"_id,omitempty"`
	Type        StepType       `json:"type" yaml:"type"`
	Title       string         `json:"title" yaml:"title"`
	Content     string         `json:"content" yaml:"content"`
	Script      string         `json:"script,omitempty" yaml:"script,omitempty"`
	Interaction string         `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	Options     []string       `json:"options,omitempty" yaml:"options,omitempty"`
	Questions   []StepQuestion `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// SessionTemplate is the server-defined shape of a therapy session.
type SessionTemplate struct {
	SessionNumber int    `json:"sessionNumber" yaml:"sessionNumber"`
	Title         string `json:"title" yaml:"title"`
	Objective     string `json:"objective" yaml:"objective"`
	Steps         []Step `json:"steps" yaml:"steps"`
}

// StepInputs maps a question id (or a step key for free-text and bespoke
// steps) to the captured answer.
type StepInputs map[string]any

// ProgressStatus is the lifecycle status of a session progress record.
type ProgressStatus string

const (
	StatusInProgress ProgressStatus = "IN_PROGRESS"
	StatusCompleted  ProgressStatus = "COMPLETED"
)

// StepProgress records what happened on one visited step.
type StepProgress struct {
	StepID    string         `json:"stepId"`
	StepTitle string         `json:"stepTitle"`
	Status    ProgressStatus `json:"status"`
	StartTime time.Time      `json:"startTime"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
	Inputs    map[string]any `json:"inputs"`
}

// SessionProgressRecord is the snapshot persisted when a session is
// finished or exited.
type SessionProgressRecord struct {
	ID            string         `json:"id"`
	UserID        int64          `json:"userId"`
	SessionNumber int            `json:"sessionNumber"`
	SessionTitle  string         `json:"sessionTitle"`
	MoodBefore    int            `json:"moodBefore,omitempty"` // zero when resumed from a checkpoint
	MoodAfter     int            `json:"moodAfter,omitempty"`
	Reflections   map[string]any `json:"reflections"`
	StepProgress  []StepProgress `json:"stepProgress"`
	Status        ProgressStatus `json:"status"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
}

// Mood bounds for the mood check.
const (
	MoodMin = 1
	MoodMax = 5
)

// ValidMood reports whether m is on the mood scale.
func ValidMood(m int) bool {
	return m >= MoodMin && m <= MoodMax
}

// Assessment instrument codes.
const (
	CodePDEQ   = "PDEQ-V1"
	CodePCL5   = "PCL5-V1"
	CodeDERS18 = "DERS18-V1"
	CodeAAQ    = "AAQ-V1"
)

// AssessmentOption is one labelled point on an item's scale.
type AssessmentOption struct {
	Label string `json:"label" yaml:"label"`
	Value int    `json:"value" yaml:"value"`
}

// AssessmentQuestion is one item of a standardized instrument.
type AssessmentQuestion struct {
	ID      string             `json:"id" yaml:"id"`
	Text    string             `json:"text" yaml:"text"`
	Cluster string             `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Options []AssessmentOption `json:"options" yaml:"options"`
}

// AssessmentTemplate describes a standardized instrument.
type AssessmentTemplate struct {
	ID                  int64                `json:"id" yaml:"-"`
	Code                string               `json:"code" yaml:"code"`
	Title               string               `json:"title" yaml:"title"`
	Questions           []AssessmentQuestion `json:"questions" yaml:"questions"`
	ReverseScoreIndices []int                `json:"reverseScoreIndices,omitempty" yaml:"reverseScoreIndices,omitempty"`
}

// IsReversed reports whether the zero-based item index is reverse scored.
func (t *AssessmentTemplate) IsReversed(i int) bool {
	if t == nil {
		return false
	}
	for _, r := range t.ReverseScoreIndices {
		if r == i {
			return true
		}
	}
	return false
}

// Unanswered marks an item without an answer in a ScoreVector.
const Unanswered = -1

// ScoreVector holds one answer value per instrument item.
type ScoreVector []int

// NewScoreVector returns a vector of n unanswered items.
func NewScoreVector(n int) ScoreVector {
	v := make(ScoreVector, n)
	for i := range v {
		v[i] = Unanswered
	}
	return v
}

// Complete reports whether every item has been answered.
func (v ScoreVector) Complete() bool {
	for _, s := range v {
		if s == Unanswered {
			return false
		}
	}
	return true
}

// AssessmentItem is one answered item in a submission.
type AssessmentItem struct {
	QuestionID string `json:"questionId"`
	Value      int    `json:"value"`
}

// AssessmentSubmission is the payload persisted for one scored instrument.
type AssessmentSubmission struct {
	ID          int64            `json:"id,omitempty"`
	UserID      int64            `json:"userId"`
	TemplateID  int64            `json:"templateId"`
	TestType    string           `json:"testType"`
	TotalScore  int              `json:"totalScore"`
	Items       []AssessmentItem `json:"items"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// SessionSummary is a session history entry in the user profile.
type SessionSummary struct {
	SessionNumber int            `json:"sessionNumber"`
	Status        ProgressStatus `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AssessmentSummary is an assessment history entry in the user profile.
type AssessmentSummary struct {
	TestType   string    `json:"testType"`
	TotalScore int       `json:"totalScore"`
	Timestamp  time.Time `json:"timestamp"`
}

// ClinicalSnapshot holds the latest score per instrument.
type ClinicalSnapshot struct {
	Scores    map[string]int `json:"scores"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SchedulePreference is when the user prefers to be reminded.
type SchedulePreference struct {
	Weekdays []time.Weekday `json:"weekdays"`
	Hour     int            `json:"hour"`
}

// UserProfile aggregates what the engine needs to know about a user.
type UserProfile struct {
	UserID                  int64               `json:"userId"`
	CurrentSession          int                 `json:"currentSession"`
	SessionHistory          []SessionSummary    `json:"sessionHistory"`
	AssessmentHistory       []AssessmentSummary `json:"assessmentHistory"`
	CurrentClinicalSnapshot *ClinicalSnapshot   `json:"currentClinicalSnapshot,omitempty"`
	SchedulePreference      *SchedulePreference `json:"schedulePreference,omitempty"`
}

// Checkpoint is the durable step position inside a session.
type Checkpoint struct {
	StepID    string `json:"stepId"`
	StepIndex int    `json:"stepIndex"`
}

// Notification is a scheduled local reminder.
type Notification struct {
	ID     string            `json:"id"`
	UserID int64             `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	FireAt time.Time         `json:"fireAt"`
	Opts   map[string]string `json:"opts,omitempty"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	AudioBaseURL  string        // prefix for pre-recorded narration files
	StaticTimeout time.Duration // how long a static file may take to become playable
	Lang          string        // UI language (en, ru)
	TTSVoice      string
}
