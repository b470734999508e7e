package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	connmodels "medigraph/internal/connection/models"
	"medigraph/internal/invite/models"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

const inviteColumns = `id, inviter_profile_id, email, code, status, redeemed_by_profile_id, created_at, expires_at`

func scanInvite(row rowScanner) (*models.Invite, error) {
	var (
		inv        models.Invite
		id         uuid.UUID
		inviter    uuid.UUID
		email      sql.NullString
		status     string
		redeemedBy uuid.NullUUID
		expiresAt  sql.NullTime
	)
	if err := row.Scan(&id, &inviter, &email, &inv.Code, &status, &redeemedBy, &inv.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	inv.ID = domain.InviteID(id)
	inv.InviterProfileID = domain.ProfileID(inviter)
	inv.Status = models.InviteStatus(status)
	if email.Valid {
		inv.Email = &email.String
	}
	if redeemedBy.Valid {
		profileID := domain.ProfileID(redeemedBy.UUID)
		inv.RedeemedByProfileID = &profileID
	}
	if expiresAt.Valid {
		inv.ExpiresAt = &expiresAt.Time
	}
	return &inv, nil
}

// InviteStore persists the invite ledger in PostgreSQL. It also carries the
// connection and counter writes the redemption transaction needs.
type InviteStore struct {
	db dbtx
}

func NewInvites(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func (s *InviteStore) CreateInvite(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invites (id, inviter_profile_id, email, code, status, redeemed_by_profile_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
	`
	var email sql.NullString
	if invite.Email != nil {
		email = sql.NullString{String: *invite.Email, Valid: true}
	}
	var expiresAt sql.NullTime
	if invite.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *invite.ExpiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(invite.ID),
		uuid.UUID(invite.InviterProfileID),
		email,
		invite.Code,
		string(invite.Status),
		invite.CreatedAt,
		expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (s *InviteStore) FindByCode(ctx context.Context, code string) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE code = $1`
	inv, err := scanInvite(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invite by code: %w", err)
	}
	return inv, nil
}

// RedeemIfActive is the single-winner write of the redemption flow: the
// active status sits in the update predicate, so of N concurrent redeemers
// exactly one row update succeeds.
func (s *InviteStore) RedeemIfActive(ctx context.Context, code string, redeemer domain.ProfileID) (*models.Invite, error) {
	query := `
		UPDATE invites
		SET status = 'redeemed', redeemed_by_profile_id = $2
		WHERE code = $1 AND status = 'active'
		RETURNING ` + inviteColumns
	inv, err := scanInvite(s.db.QueryRowContext(ctx, query, code, uuid.UUID(redeemer)))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("redeem invite: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM invites WHERE code = $1)`, code).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check invite exists: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrAlreadyUsed
}

func (s *InviteStore) MarkExpired(ctx context.Context, id domain.InviteID) error {
	result, err := s.db.ExecContext(ctx, `UPDATE invites SET status = 'expired' WHERE id = $1 AND status = 'active'`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("mark invite expired: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark invite expired rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InviteStore) CreateConnection(ctx context.Context, conn *connmodels.Connection) error {
	return insertConnection(ctx, s.db, conn)
}

func (s *InviteStore) FindConnectionBetween(ctx context.Context, a, b domain.ProfileID) (*connmodels.Connection, error) {
	return findLiveConnectionBetween(ctx, s.db, a, b)
}

func (s *InviteStore) IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error {
	return incrementConnectionCounts(ctx, s.db, a, b)
}

func (s *InviteStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return findProfile(ctx, s.db, id)
}
