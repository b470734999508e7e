package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

// ProfileStore persists profile rows in PostgreSQL.
type ProfileStore struct {
	db dbtx
}

func NewProfiles(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, handle, email, password_hash, connection_count, recommendation_count, verification_status, is_verified, is_frozen, created_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, FALSE, FALSE, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(profile.ID),
		profile.Handle,
		profile.Email,
		profile.PasswordHash,
		string(profile.VerificationStatus),
		profile.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error) {
	return findProfile(ctx, s.db, id)
}

func (s *ProfileStore) FindByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE handle = $1`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, handle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by handle: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) SetFrozen(ctx context.Context, id domain.ProfileID, frozen bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE profiles SET is_frozen = $2 WHERE id = $1`, uuid.UUID(id), frozen)
	if err != nil {
		return fmt.Errorf("set frozen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set frozen rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
