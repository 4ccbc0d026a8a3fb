package model

import "time"

// ProgressExport is the top-level JSON structure for a user's export.
type ProgressExport struct {
	UserID      int64                   `json:"user_id"`
	Username    string                  `json:"username"`
	DisplayName string                  `json:"display_name"`
	ExportedAt  time.Time               `json:"exported_at"`
	Sessions    []SessionProgressRecord `json:"sessions"`
	Assessments []AssessmentSubmission  `json:"assessments"`
	Fallback    []SessionProgressRecord `json:"fallback,omitempty"`
}

// TemplateBundle is the content of a template import file.
type TemplateBundle struct {
	Sessions    []SessionTemplate    `json:"sessions" yaml:"sessions"`
	Assessments []AssessmentTemplate `json:"assessments" yaml:"assessments"`
}
