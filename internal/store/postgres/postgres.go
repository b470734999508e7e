// Package postgres persists the trust graph in PostgreSQL. Stores are pure
// I/O; every uniqueness and prior-state rule lives in a constraint or in the
// WHERE clause of a conditional update so concurrent writers are resolved by
// the database, not by application reads.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	profilemodels "medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

// dbtx is satisfied by *sql.DB and *sql.Tx so every store runs unchanged
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

const profileColumns = `id, handle, email, password_hash, connection_count, recommendation_count, verification_status, is_verified, is_frozen, created_at`

func scanProfile(row rowScanner) (*profilemodels.Profile, error) {
	var (
		p      profilemodels.Profile
		id     uuid.UUID
		status string
	)
	if err := row.Scan(&id, &p.Handle, &p.Email, &p.PasswordHash, &p.ConnectionCount, &p.RecommendationCount, &status, &p.IsVerified, &p.IsFrozen, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = domain.ProfileID(id)
	p.VerificationStatus = profilemodels.VerificationStatus(status)
	return &p, nil
}

func findProfile(ctx context.Context, db dbtx, id domain.ProfileID) (*profilemodels.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func incrementConnectionCounts(ctx context.Context, db dbtx, a, b domain.ProfileID) error {
	query := `UPDATE profiles SET connection_count = connection_count + 1 WHERE id IN ($1, $2)`
	result, err := db.ExecContext(ctx, query, uuid.UUID(a), uuid.UUID(b))
	if err != nil {
		return fmt.Errorf("increment connection counts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment connection counts rows affected: %w", err)
	}
	if rows != 2 {
		return sentinel.ErrNotFound
	}
	return nil
}
