package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	profilemodels "medigraph/internal/profile/models"
	"medigraph/internal/recommendation/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

// RecommendationStore persists the recommendation ledger in PostgreSQL.
type RecommendationStore struct {
	db dbtx
}

func NewRecommendations(db *sql.DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

func (s *RecommendationStore) Insert(ctx context.Context, rec *models.Recommendation) error {
	// ON CONFLICT DO NOTHING instead of catching the unique violation: a
	// raised 23505 would abort the surrounding transaction, and a duplicate
	// must leave it healthy so the caller can still commit.
	query := `
		INSERT INTO recommendations (id, profile_id, recommender_key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id, recommender_key) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.ProfileID),
		rec.RecommenderKey,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert recommendation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RecommendationStore) IncrementRecommendationCount(ctx context.Context, profileID domain.ProfileID) error {
	query := `UPDATE profiles SET recommendation_count = recommendation_count + 1 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(profileID))
	if err != nil {
		return fmt.Errorf("increment recommendation count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment recommendation count rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RecommendationStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return findProfile(ctx, s.db, id)
}
