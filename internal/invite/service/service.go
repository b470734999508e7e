package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	connmodels "medigraph/internal/connection/models"
	"medigraph/internal/invite/metrics"
	"medigraph/internal/invite/models"
	"medigraph/internal/notification"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/sentinel"
)

// Store is the persistence surface the invite ledger needs. The redemption
// path reaches across aggregates (invite row, connection edge, both profile
// counters) because all three change in one transaction.
type Store interface {
	CreateInvite(ctx context.Context, invite *models.Invite) error
	FindByCode(ctx context.Context, code string) (*models.Invite, error)
	// RedeemIfActive flips active → redeemed with the prior state in the
	// update predicate. Exactly one concurrent caller observes success;
	// losers get sentinel.ErrAlreadyUsed. ErrNotFound when the code is
	// unknown.
	RedeemIfActive(ctx context.Context, code string, redeemer domain.ProfileID) (*models.Invite, error)
	// MarkExpired lazily records that a code's window has passed. Expiry is
	// advisory; there is no background sweep.
	MarkExpired(ctx context.Context, id domain.InviteID) error

	CreateConnection(ctx context.Context, conn *connmodels.Connection) error
	FindConnectionBetween(ctx context.Context, a, b domain.ProfileID) (*connmodels.Connection, error)
	IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error

	FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error)
}

// Tx provides the transactional boundary for redemption.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// Notifier receives post-commit events. Best-effort by contract.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

// CounterCache invalidates cached profile cards after counter mutations.
type CounterCache interface {
	Invalidate(ctx context.Context, id domain.ProfileID) error
}

// Service implements the invite ledger: issuing one-time codes and redeeming
// them into already-accepted connections (auto-connect).
type Service struct {
	store    Store
	tx       Tx
	notifier Notifier
	cache    CounterCache
	metrics  *metrics.Metrics
	logger   *slog.Logger

	inviteTTL time.Duration
	baseURL   string
}

func New(store Store, tx Tx, notifier Notifier, cache CounterCache, m *metrics.Metrics, logger *slog.Logger, inviteTTL time.Duration, baseURL string) *Service {
	return &Service{
		store:     store,
		tx:        tx,
		notifier:  notifier,
		cache:     cache,
		metrics:   m,
		logger:    logger,
		inviteTTL: inviteTTL,
		baseURL:   baseURL,
	}
}

// URL returns the shareable join link for a code.
func (s *Service) URL(code string) string {
	return s.baseURL + "/join/" + code
}

// Issue creates an active invite for the given profile. email is optional; a
// nil email produces an open share-link invite. The ledger imposes no hard
// cap on issued invites.
func (s *Service) Issue(ctx context.Context, inviterID domain.ProfileID, email *string) (*models.Invite, error) {
	inviter, err := s.store.FindProfile(ctx, inviterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "inviter profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load inviter profile")
	}
	if inviter.IsFrozen {
		return nil, dErrors.New(dErrors.CodeProfileFrozen, "frozen profiles cannot issue invites")
	}

	code, err := models.NewCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate invite code")
	}

	now := time.Now()
	invite := &models.Invite{
		ID:               domain.InviteID(uuid.New()),
		InviterProfileID: inviterID,
		Email:            email,
		Code:             code,
		Status:           models.InviteActive,
		CreatedAt:        now,
	}
	if s.inviteTTL > 0 {
		expires := now.Add(s.inviteTTL)
		invite.ExpiresAt = &expires
	}

	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist invite")
	}
	s.metrics.IncIssued()

	if email != nil && *email != "" {
		s.notifier.Notify(ctx, notification.Event{
			Kind:           notification.KindInviteIssued,
			RecipientEmail: *email,
			ActorHandle:    inviter.Handle,
			Data:           map[string]string{"url": s.URL(code)},
		})
	}
	return invite, nil
}

// Redeem consumes a code and, in the same transaction, creates an accepted
// connection between inviter and redeemer and increments both connection
// counters. Retrying after a timeout is safe: finding the code already
// redeemed by the caller is treated as success.
func (s *Service) Redeem(ctx context.Context, code string, redeemerID domain.ProfileID) (*connmodels.Connection, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "code cannot be empty")
	}

	var (
		conn         *connmodels.Connection
		inviterEmail string
		actorHandle  string
		freshRedeem  bool
		expiredID    *domain.InviteID
	)

	err := s.tx.RunInTx(ctx, func(store Store) error {
		invite, err := store.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "invite code not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load invite")
		}
		if invite.InviterProfileID == redeemerID {
			return dErrors.New(dErrors.CodeSelfRedemption, "cannot redeem your own invite")
		}

		switch invite.Status {
		case models.InviteRedeemed:
			// Caller's own earlier redemption (timeout retry) is a success.
			if invite.RedeemedByProfileID != nil && *invite.RedeemedByProfileID == redeemerID {
				existing, err := store.FindConnectionBetween(ctx, invite.InviterProfileID, redeemerID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "load redeemed connection")
				}
				conn = existing
				return nil
			}
			return dErrors.New(dErrors.CodeAlreadyRedeemed, "invite code already redeemed")
		case models.InviteExpired:
			return dErrors.New(dErrors.CodeInviteExpired, "invite code has expired")
		}

		now := time.Now()
		if invite.ExpiredAt(now) {
			// Record the lazy transition after the transaction returns: the
			// domain error rolls this transaction back, which would undo an
			// in-transaction write.
			id := invite.ID
			expiredID = &id
			return dErrors.New(dErrors.CodeInviteExpired, "invite code has expired")
		}

		inviter, err := store.FindProfile(ctx, invite.InviterProfileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load inviter profile")
		}
		redeemer, err := store.FindProfile(ctx, redeemerID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "redeemer profile not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load redeemer profile")
		}
		if inviter.IsFrozen || redeemer.IsFrozen {
			return dErrors.New(dErrors.CodeProfileFrozen, "frozen profiles cannot form connections")
		}

		// The conditional update is the concurrency control: only the first
		// caller's write matches a row.
		if _, err := store.RedeemIfActive(ctx, code, redeemerID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.metrics.IncRedeemConflict()
				return dErrors.New(dErrors.CodeAlreadyRedeemed, "invite code already redeemed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "redeem invite")
		}

		edge := &connmodels.Connection{
			ID:          domain.ConnectionID(uuid.New()),
			RequesterID: invite.InviterProfileID,
			RecipientID: redeemerID,
			Status:      connmodels.ConnectionAccepted,
			CreatedAt:   now,
			ResolvedAt:  &now,
		}
		if err := store.CreateConnection(ctx, edge); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyConnected, "profiles are already connected")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create connection")
		}
		if err := store.IncrementConnectionCounts(ctx, invite.InviterProfileID, redeemerID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "increment connection counts")
		}

		conn = edge
		inviterEmail = inviter.Email
		actorHandle = redeemer.Handle
		freshRedeem = true
		return nil
	})
	if err != nil {
		if expiredID != nil {
			// Best effort; a concurrent caller may have marked it first.
			if merr := s.store.MarkExpired(ctx, *expiredID); merr != nil && !errors.Is(merr, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "mark invite expired failed",
					"invite_id", expiredID.String(),
					"error", merr,
				)
			}
		}
		return nil, err
	}

	if freshRedeem {
		s.metrics.IncRedeemed()
		s.invalidate(ctx, conn.RequesterID, conn.RecipientID)
		s.notifier.Notify(ctx, notification.Event{
			Kind:             notification.KindInviteRedeemed,
			RecipientProfile: conn.RequesterID,
			RecipientEmail:   inviterEmail,
			ActorHandle:      actorHandle,
		})
	}
	return conn, nil
}

func (s *Service) invalidate(ctx context.Context, ids ...domain.ProfileID) {
	if s.cache == nil {
		return
	}
	for _, id := range ids {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "counter cache invalidation failed",
				"profile_id", id.String(),
				"error", err,
			)
		}
	}
}
