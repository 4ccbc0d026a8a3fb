package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/pathway/internal/model"
)

// PutSessionTemplate inserts or replaces the template for its session number.
func (s *Store) PutSessionTemplate(ctx context.Context, t model.SessionTemplate) error {
	if t.SessionNumber <= 0 {
		return fmt.Errorf("session number must be positive, got %d", t.SessionNumber)
	}
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_templates (session_number, title, objective, steps, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_number) DO UPDATE SET
		   title = excluded.title, objective = excluded.objective,
		   steps = excluded.steps, updated_at = excluded.updated_at`,
		t.SessionNumber, t.Title, t.Objective, string(steps), s.now(),
	)
	if err != nil {
		return fmt.Errorf("save session template %d: %w", t.SessionNumber, err)
	}
	return nil
}

// FetchSessionTemplate returns the template for a session number, or an
// error wrapping model.ErrNotFound.
func (s *Store) FetchSessionTemplate(ctx context.Context, sessionNumber int) (*model.SessionTemplate, error) {
	t := model.SessionTemplate{SessionNumber: sessionNumber}
	var steps string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, objective, steps FROM session_templates WHERE session_number = ?`, sessionNumber,
	).Scan(&t.Title, &t.Objective, &steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session template %d: %w", sessionNumber, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, fmt.Errorf("decode steps of session %d: %w", sessionNumber, err)
	}
	return &t, nil
}

// ListSessionTemplates returns all session templates ordered by number.
func (s *Store) ListSessionTemplates(ctx context.Context) ([]model.SessionTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_number, title, objective, steps FROM session_templates ORDER BY session_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionTemplate
	for rows.Next() {
		var t model.SessionTemplate
		var steps string
		if err := rows.Scan(&t.SessionNumber, &t.Title, &t.Objective, &steps); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of session %d: %w", t.SessionNumber, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PutAssessmentTemplate inserts or replaces an instrument template by code
// and returns its id. The id is stable across replacements.
func (s *Store) PutAssessmentTemplate(ctx context.Context, t model.AssessmentTemplate) (int64, error) {
	if t.Code == "" {
		return 0, errors.New("assessment template code is required")
	}
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}
	reverse := t.ReverseScoreIndices
	if reverse == nil {
		reverse = []int{}
	}
	rev, err := json.Marshal(reverse)
	if err != nil {
		return 0, fmt.Errorf("encode reverse indices: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO assessment_templates (code, title, questions, reverse_indices, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   title = excluded.title, questions = excluded.questions,
		   reverse_indices = excluded.reverse_indices, updated_at = excluded.updated_at
		 RETURNING id`,
		t.Code, t.Title, string(questions), string(rev), s.now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save assessment template %s: %w", t.Code, err)
	}
	return id, nil
}

// FetchAssessmentTemplate returns an instrument template by code, or an
// error wrapping model.ErrNotFound.
func (s *Store) FetchAssessmentTemplate(ctx context.Context, code string) (*model.AssessmentTemplate, error) {
	t := model.AssessmentTemplate{Code: code}
	var questions, rev string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, questions, reverse_indices FROM assessment_templates WHERE code = ?`, code,
	).Scan(&t.ID, &t.Title, &questions, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment template %s: %w", code, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &t.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", code, err)
	}
	if err := json.Unmarshal([]byte(rev), &t.ReverseScoreIndices); err != nil {
		return nil, fmt.Errorf("decode reverse indices of %s: %w", code, err)
	}
	return &t, nil
}

// ParseTemplateBundle decodes an import file. Files ending in .json are
// read as JSON, everything else as YAML.
func ParseTemplateBundle(name string, data []byte) (model.TemplateBundle, error) {
	var b model.TemplateBundle
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(data, &b)
	} else {
		err = yaml.Unmarshal(data, &b)
	}
	if err != nil {
		return b, fmt.Errorf("parse %s: %w", name, err)
	}
	return b, nil
}

// ImportBundle saves every template of a bundle in one pass.
func (s *Store) ImportBundle(ctx context.Context, b model.TemplateBundle) error {
	for _, t := range b.Sessions {
		if err := s.PutSessionTemplate(ctx, t); err != nil {
			return err
		}
	}
	for _, t := range b.Assessments {
		if _, err := s.PutAssessmentTemplate(ctx, t); err != nil {
			return err
		}
	}
	slog.Info("imported templates", "sessions", len(b.Sessions), "assessments", len(b.Assessments))
	return nil
}
