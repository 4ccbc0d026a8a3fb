package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/pathway/internal/model"
)

// ExportProgress collects everything recorded for a user, including
// records still waiting in the local fallback.
func (s *Store) ExportProgress(ctx context.Context, userID int64) (*model.ProgressExport, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
	}

	sessions, err := s.ListSessionProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	assessments, err := s.ListAssessmentResults(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessment results: %w", err)
	}
	fallback, err := s.ListFallback(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list fallback records: %w", err)
	}

	return &model.ProgressExport{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		ExportedAt:  s.now(),
		Sessions:    sessions,
		Assessments: assessments,
		Fallback:    fallback,
	}, nil
}
