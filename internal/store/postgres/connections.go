package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medigraph/internal/connection/models"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

const connectionColumns = `id, requester_id, recipient_id, status, created_at, resolved_at`

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		c          models.Connection
		id         uuid.UUID
		requester  uuid.UUID
		recipient  uuid.UUID
		status     string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&id, &requester, &recipient, &status, &c.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	c.ID = domain.ConnectionID(id)
	c.RequesterID = domain.ProfileID(requester)
	c.RecipientID = domain.ProfileID(recipient)
	c.Status = models.ConnectionStatus(status)
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return &c, nil
}

func insertConnection(ctx context.Context, db dbtx, conn *models.Connection) error {
	query := `
		INSERT INTO connections (id, requester_id, recipient_id, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var resolvedAt sql.NullTime
	if conn.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *conn.ResolvedAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, query,
		uuid.UUID(conn.ID),
		uuid.UUID(conn.RequesterID),
		uuid.UUID(conn.RecipientID),
		string(conn.Status),
		conn.CreatedAt,
		resolvedAt,
	)
	if err != nil {
		// The live-pair index turns a lost race into a conflict here instead
		// of a duplicate edge.
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func findLiveConnectionBetween(ctx context.Context, db dbtx, a, b domain.ProfileID) (*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE LEAST(requester_id, recipient_id) = LEAST($1::uuid, $2::uuid)
		  AND GREATEST(requester_id, recipient_id) = GREATEST($1::uuid, $2::uuid)
		  AND status IN ('pending', 'accepted')
	`
	c, err := scanConnection(db.QueryRowContext(ctx, query, uuid.UUID(a), uuid.UUID(b)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find live connection: %w", err)
	}
	return c, nil
}

// ConnectionStore persists graph edges in PostgreSQL.
type ConnectionStore struct {
	db dbtx
}

func NewConnections(db *sql.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func (s *ConnectionStore) Create(ctx context.Context, conn *models.Connection) error {
	return insertConnection(ctx, s.db, conn)
}

func (s *ConnectionStore) FindByID(ctx context.Context, id domain.ConnectionID) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	c, err := scanConnection(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find connection by id: %w", err)
	}
	return c, nil
}

func (s *ConnectionStore) FindBetween(ctx context.Context, a, b domain.ProfileID) ([]*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE LEAST(requester_id, recipient_id) = LEAST($1::uuid, $2::uuid)
		  AND GREATEST(requester_id, recipient_id) = GREATEST($1::uuid, $2::uuid)
		ORDER BY created_at DESC
	`
	return s.queryConnections(ctx, query, uuid.UUID(a), uuid.UUID(b))
}

// ResolveIfPending flips pending to the target status. The prior state sits
// in the update predicate so only one of two concurrent responders matches
// the row.
func (s *ConnectionStore) ResolveIfPending(ctx context.Context, id domain.ConnectionID, status models.ConnectionStatus, resolvedAt time.Time) (*models.Connection, error) {
	query := `
		UPDATE connections
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + connectionColumns
	c, err := scanConnection(s.db.QueryRowContext(ctx, query, uuid.UUID(id), string(status), resolvedAt))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve connection: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM connections WHERE id = $1)`, uuid.UUID(id)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check connection exists: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func (s *ConnectionStore) ListAccepted(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE status = 'accepted' AND (requester_id = $1 OR recipient_id = $1)
		ORDER BY resolved_at DESC
	`
	return s.queryConnections(ctx, query, uuid.UUID(profileID))
}

func (s *ConnectionStore) ListPendingFor(ctx context.Context, recipientID domain.ProfileID) ([]*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE status = 'pending' AND recipient_id = $1
		ORDER BY created_at DESC
	`
	return s.queryConnections(ctx, query, uuid.UUID(recipientID))
}

func (s *ConnectionStore) IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error {
	return incrementConnectionCounts(ctx, s.db, a, b)
}

func (s *ConnectionStore) FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error) {
	return findProfile(ctx, s.db, id)
}

func (s *ConnectionStore) queryConnections(ctx context.Context, query string, args ...any) ([]*models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}
