package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	profilemodels "medigraph/internal/profile/models"
	"medigraph/internal/verification/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

const verificationColumns = `id, profile_id, document_refs, status, submitted_at, resolved_at`

func scanVerificationRequest(row rowScanner) (*models.VerificationRequest, error) {
	var (
		req        models.VerificationRequest
		id         uuid.UUID
		profileID  uuid.UUID
		refs       []byte
		status     string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&id, &profileID, &refs, &status, &req.SubmittedAt, &resolvedAt); err != nil {
		return nil, err
	}
	req.ID = domain.VerificationRequestID(id)
	req.ProfileID = domain.ProfileID(profileID)
	req.Status = models.RequestStatus(status)
	if resolvedAt.Valid {
		req.ResolvedAt = &resolvedAt.Time
	}
	if err := json.Unmarshal(refs, &req.DocumentRefs); err != nil {
		return nil, fmt.Errorf("unmarshal document refs: %w", err)
	}
	return &req, nil
}

// VerificationStore persists credential reviews in PostgreSQL.
type VerificationStore struct {
	db dbtx
}

func NewVerifications(db *sql.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

func (s *VerificationStore) CreateRequest(ctx context.Context, req *models.VerificationRequest) error {
	refs, err := json.Marshal(req.DocumentRefs)
	if err != nil {
		return fmt.Errorf("marshal document refs: %w", err)
	}
	query := `
		INSERT INTO verification_requests (id, profile_id, document_refs, status, submitted_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.ProfileID),
		refs,
		string(req.Status),
		req.SubmittedAt,
	)
	if err != nil {
		// The one-pending-per-profile partial index resolves concurrent
		// submissions to a single winner.
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification request: %w", err)
	}
	return nil
}

func (s *VerificationStore) FindRequest(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error) {
	query := `SELECT ` + verificationColumns + ` FROM verification_requests WHERE id = $1`
	req, err := scanVerificationRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return req, nil
}

// ResolveIfPending flips pending to the decided status; the prior state in
// the predicate gives a concurrent double resolution exactly one winner.
func (s *VerificationStore) ResolveIfPending(ctx context.Context, id domain.VerificationRequestID, status models.RequestStatus, resolvedAt time.Time) (*models.VerificationRequest, error) {
	query := `
		UPDATE verification_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + verificationColumns
	req, err := scanVerificationRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(id), string(status), resolvedAt))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve verification request: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM verification_requests WHERE id = $1)`, uuid.UUID(id)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check verification request exists: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func (s *VerificationStore) SetProfileVerification(ctx context.Context, profileID domain.ProfileID, status profilemodels.VerificationStatus, isVerified bool) error {
	query := `UPDATE profiles SET verification_status = $2, is_verified = $3 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(profileID), string(status), isVerified)
	if err != nil {
		return fmt.Errorf("set profile verification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set profile verification rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *VerificationStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return findProfile(ctx, s.db, id)
}
