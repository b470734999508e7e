package memorydb

import (
	"context"

	connservice "medigraph/internal/connection/service"
	inviteservice "medigraph/internal/invite/service"
	recservice "medigraph/internal/recommendation/service"
	verifservice "medigraph/internal/verification/service"
)

// runInTx serializes transactions on txMu and rolls back by restoring a
// snapshot when fn fails. The store views handed to fn are in-transaction
// views that skip the shared txMu acquisition; outside mutations wait on
// txMu instead, so a rollback can never erase them. Plain reads still take
// only mu and never block on a long-running transaction.
func (g *Graph) runInTx(ctx context.Context, fn func() error) error {
	g.txMu.Lock()
	defer g.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := g.snapshot()
	if err := fn(); err != nil {
		g.restore(snap)
		return err
	}
	return nil
}

// InviteTx returns the invite-vertical transaction runner.
func (g *Graph) InviteTx() *InviteTxRunner { return &InviteTxRunner{g: g} }

type InviteTxRunner struct {
	g *Graph
}

func (t *InviteTxRunner) RunInTx(ctx context.Context, fn func(store inviteservice.Store) error) error {
	return t.g.runInTx(ctx, func() error {
		return fn(&InviteStore{g: t.g, inTx: true})
	})
}

// ConnectionTx returns the connection-vertical transaction runner.
func (g *Graph) ConnectionTx() *ConnectionTxRunner { return &ConnectionTxRunner{g: g} }

type ConnectionTxRunner struct {
	g *Graph
}

func (t *ConnectionTxRunner) RunInTx(ctx context.Context, fn func(store connservice.Store) error) error {
	return t.g.runInTx(ctx, func() error {
		return fn(&ConnectionStore{g: t.g, inTx: true})
	})
}

// RecommendationTx returns the recommendation-vertical transaction runner.
func (g *Graph) RecommendationTx() *RecommendationTxRunner { return &RecommendationTxRunner{g: g} }

type RecommendationTxRunner struct {
	g *Graph
}

func (t *RecommendationTxRunner) RunInTx(ctx context.Context, fn func(store recservice.Store) error) error {
	return t.g.runInTx(ctx, func() error {
		return fn(&RecommendationStore{g: t.g, inTx: true})
	})
}

// VerificationTx returns the verification-vertical transaction runner.
func (g *Graph) VerificationTx() *VerificationTxRunner { return &VerificationTxRunner{g: g} }

type VerificationTxRunner struct {
	g *Graph
}

func (t *VerificationTxRunner) RunInTx(ctx context.Context, fn func(store verifservice.Store) error) error {
	return t.g.runInTx(ctx, func() error {
		return fn(&VerificationStore{g: t.g, inTx: true})
	})
}
