package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	connservice "medigraph/internal/connection/service"
	inviteservice "medigraph/internal/invite/service"
	recservice "medigraph/internal/recommendation/service"
	verifservice "medigraph/internal/verification/service"
)

// defaultTxTimeout bounds a transaction so a stalled caller cannot pin row
// locks on hot profile rows.
const defaultTxTimeout = 5 * time.Second

func runInTx(ctx context.Context, db *sql.DB, timeout time.Duration, fn func(tx *sql.Tx) error) error {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InviteTxRunner runs invite-vertical transactions with the store rebound to
// the open *sql.Tx.
type InviteTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewInviteTx(db *sql.DB, timeout time.Duration) *InviteTxRunner {
	return &InviteTxRunner{db: db, timeout: timeout}
}

func (r *InviteTxRunner) RunInTx(ctx context.Context, fn func(store inviteservice.Store) error) error {
	return runInTx(ctx, r.db, r.timeout, func(tx *sql.Tx) error {
		return fn(&InviteStore{db: tx})
	})
}

// ConnectionTxRunner runs connection-vertical transactions.
type ConnectionTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewConnectionTx(db *sql.DB, timeout time.Duration) *ConnectionTxRunner {
	return &ConnectionTxRunner{db: db, timeout: timeout}
}

func (r *ConnectionTxRunner) RunInTx(ctx context.Context, fn func(store connservice.Store) error) error {
	return runInTx(ctx, r.db, r.timeout, func(tx *sql.Tx) error {
		return fn(&ConnectionStore{db: tx})
	})
}

// RecommendationTxRunner runs recommendation-vertical transactions.
type RecommendationTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewRecommendationTx(db *sql.DB, timeout time.Duration) *RecommendationTxRunner {
	return &RecommendationTxRunner{db: db, timeout: timeout}
}

func (r *RecommendationTxRunner) RunInTx(ctx context.Context, fn func(store recservice.Store) error) error {
	return runInTx(ctx, r.db, r.timeout, func(tx *sql.Tx) error {
		return fn(&RecommendationStore{db: tx})
	})
}

// VerificationTxRunner runs verification-vertical transactions.
type VerificationTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewVerificationTx(db *sql.DB, timeout time.Duration) *VerificationTxRunner {
	return &VerificationTxRunner{db: db, timeout: timeout}
}

func (r *VerificationTxRunner) RunInTx(ctx context.Context, fn func(store verifservice.Store) error) error {
	return runInTx(ctx, r.db, r.timeout, func(tx *sql.Tx) error {
		return fn(&VerificationStore{db: tx})
	})
}
