package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/pavelanni/pathway/internal/model"
)

// SubmitSessionProgress stores a progress record. A COMPLETED record also
// moves the user's current session past it.
func (s *Store) SubmitSessionProgress(ctx context.Context, rec model.SessionProgressRecord) error {
	reflections, err := json.Marshal(rec.Reflections)
	if err != nil {
		return fmt.Errorf("encode reflections: %w", err)
	}
	steps, err := json.Marshal(rec.StepProgress)
	if err != nil {
		return fmt.Errorf("encode step progress: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_progress
		 (id, user_id, session_number, session_title, mood_before, mood_after,
		  reflections, step_progress, status, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionNumber, rec.SessionTitle, rec.MoodBefore, rec.MoodAfter,
		string(reflections), string(steps), rec.Status, rec.StartTime, rec.EndTime,
	)
	if err != nil {
		return fmt.Errorf("insert progress record: %w", err)
	}

	if rec.Status == model.StatusCompleted {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET current_session = MAX(current_session, ?) WHERE id = ?`,
			rec.SessionNumber+1, rec.UserID,
		)
		if err != nil {
			return fmt.Errorf("advance current session: %w", err)
		}
	}
	return tx.Commit()
}

// ListSessionProgress returns a user's progress records, oldest first.
func (s *Store) ListSessionProgress(ctx context.Context, userID int64) ([]model.SessionProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_number, session_title, mood_before, mood_after,
		        reflections, step_progress, status, start_time, end_time
		 FROM session_progress WHERE user_id = ? ORDER BY end_time, id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionProgressRecord
	for rows.Next() {
		var rec model.SessionProgressRecord
		var reflections, steps string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionNumber, &rec.SessionTitle,
			&rec.MoodBefore, &rec.MoodAfter, &reflections, &steps, &rec.Status,
			&rec.StartTime, &rec.EndTime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reflections), &rec.Reflections); err != nil {
			return nil, fmt.Errorf("decode reflections of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(steps), &rec.StepProgress); err != nil {
			return nil, fmt.Errorf("decode step progress of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendFallback keeps a record that could not be submitted.
func (s *Store) AppendFallback(ctx context.Context, userID int64, rec model.SessionProgressRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_fallback (user_id, record, created_at) VALUES (?, ?, ?)`,
		userID, string(data), s.now(),
	)
	return err
}

// ListFallback returns the records kept for a user, oldest first.
func (s *Store) ListFallback(ctx context.Context, userID int64) ([]model.SessionProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM local_fallback WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionProgressRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec model.SessionProgressRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode fallback record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SubmitAssessment stores one scored instrument.
func (s *Store) SubmitAssessment(ctx context.Context, sub model.AssessmentSubmission) error {
	items, err := json.Marshal(sub.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	submitted := sub.SubmittedAt
	if submitted.IsZero() {
		submitted = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessment_results (user_id, template_id, test_type, total_score, items, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.TemplateID, sub.TestType, sub.TotalScore, string(items), submitted,
	)
	if err != nil {
		return fmt.Errorf("insert %s result: %w", sub.TestType, err)
	}
	return nil
}

// ListAssessmentResults returns a user's submissions, oldest first.
func (s *Store) ListAssessmentResults(ctx context.Context, userID int64) ([]model.AssessmentSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, template_id, test_type, total_score, items, submitted_at
		 FROM assessment_results WHERE user_id = ? ORDER BY submitted_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AssessmentSubmission
	for rows.Next() {
		var sub model.AssessmentSubmission
		var items string
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.TemplateID, &sub.TestType,
			&sub.TotalScore, &items, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &sub.Items); err != nil {
			return nil, fmt.Errorf("decode items of result %d: %w", sub.ID, err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// FetchUserProfile assembles the profile the engine needs from the user
// row, progress records and assessment results.
func (s *Store) FetchUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p := &model.UserProfile{UserID: userID}
	var schedule string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_session, schedule FROM users WHERE id = ?`, userID,
	).Scan(&p.CurrentSession, &schedule)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if schedule != "" {
		var pref model.SchedulePreference
		if err := json.Unmarshal([]byte(schedule), &pref); err != nil {
			return nil, fmt.Errorf("decode schedule preference: %w", err)
		}
		p.SchedulePreference = &pref
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_number, status, end_time FROM session_progress
		 WHERE user_id = ? ORDER BY end_time, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h model.SessionSummary
		if err := rows.Scan(&h.SessionNumber, &h.Status, &h.Timestamp); err != nil {
			return nil, err
		}
		p.SessionHistory = append(p.SessionHistory, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results, err := s.ListAssessmentResults(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		p.AssessmentHistory = append(p.AssessmentHistory, model.AssessmentSummary{
			TestType:   r.TestType,
			TotalScore: r.TotalScore,
			Timestamp:  r.SubmittedAt,
		})
		if p.CurrentClinicalSnapshot == nil {
			p.CurrentClinicalSnapshot = &model.ClinicalSnapshot{Scores: map[string]int{}}
		}
		// Results are ordered oldest first, so later ones win.
		p.CurrentClinicalSnapshot.Scores[r.TestType] = r.TotalScore
		p.CurrentClinicalSnapshot.UpdatedAt = r.SubmittedAt
	}
	return p, nil
}

// SetSchedulePreference stores when the user wants to be reminded. A nil
// preference restores the default.
func (s *Store) SetSchedulePreference(ctx context.Context, userID int64, pref *model.SchedulePreference) error {
	var value string
	if pref != nil {
		data, err := json.Marshal(pref)
		if err != nil {
			return fmt.Errorf("encode schedule preference: %w", err)
		}
		value = string(data)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE users SET schedule = ? WHERE id = ?`, value, userID)
	return err
}
