// Package session drives a client through the server-defined steps of a
// therapy session.
package session

import (
	"fmt"
	"strings"

	"github.com/pavelanni/pathway/internal/model"
)

var knownStepTypes = map[string]model.StepType{
	"intro":         model.StepIntro,
	"introduction":  model.StepIntro,
	"reflection":    model.StepReflection,
	"questionnaire": model.StepQuestionnaire,
	"exercise":      model.StepExercise,
	"meditation":    model.StepMeditation,
	"closing":       model.StepClosing,
	"outro":         model.StepOutro,
	"review":        model.StepReview,
}

// ParseStepType maps a server-supplied type string onto the fixed step
// types. Unknown or missing types fall back to the generic exercise handler.
func ParseStepType(s string) model.StepType {
	if t, ok := knownStepTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return model.StepExercise
}

// Normalize rewrites step and question types of a fetched template in place.
func Normalize(t *model.SessionTemplate) {
	for i := range t.Steps {
		t.Steps[i].Type = ParseStepType(string(t.Steps[i].Type))
		for j := range t.Steps[i].Questions {
			q := &t.Steps[i].Questions[j]
			switch model.QuestionType(strings.ToLower(string(q.Type))) {
			case model.QuestionLikert:
				q.Type = model.QuestionLikert
			case model.QuestionChoice:
				q.Type = model.QuestionChoice
			default:
				q.Type = model.QuestionText
			}
		}
	}
}

// StepKey returns the identity of the step at index: its step id, the
// document id, or a synthesized positional key.
func StepKey(step model.Step, index int) string {
	if step.StepID != "" {
		return step.StepID
	}
	if step.DocID != "" {
		return step.DocID
	}
	return fmt.Sprintf("step-%d", index+1)
}
