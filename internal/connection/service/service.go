package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medigraph/internal/connection/metrics"
	"medigraph/internal/connection/models"
	"medigraph/internal/notification"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/sentinel"
)

// Action is a recipient's answer to a pending request.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionAccept, ActionReject:
		return Action(s), true
	}
	return "", false
}

// Store is the persistence surface of the connection graph.
type Store interface {
	// Create inserts a new edge. The live-pair uniqueness constraint (at most
	// one pending-or-accepted edge per unordered pair) is enforced by the
	// store and surfaces as sentinel.ErrConflict.
	Create(ctx context.Context, conn *models.Connection) error
	FindByID(ctx context.Context, id domain.ConnectionID) (*models.Connection, error)
	// FindBetween returns every edge for the unordered pair, newest first.
	FindBetween(ctx context.Context, a, b domain.ProfileID) ([]*models.Connection, error)
	// ResolveIfPending flips pending → status with the prior state in the
	// update predicate; sentinel.ErrInvalidState when the edge exists but is
	// no longer pending.
	ResolveIfPending(ctx context.Context, id domain.ConnectionID, status models.ConnectionStatus, resolvedAt time.Time) (*models.Connection, error)
	ListAccepted(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error)
	ListPendingFor(ctx context.Context, recipientID domain.ProfileID) ([]*models.Connection, error)
	IncrementConnectionCounts(ctx context.Context, a, b domain.ProfileID) error
	FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error)
}

// Tx provides the transactional boundary for graph mutations.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

type CounterCache interface {
	Invalidate(ctx context.Context, id domain.ProfileID) error
}

// Service maintains pending/accepted edges between profiles and the derived
// per-profile connection counters.
type Service struct {
	store    Store
	tx       Tx
	notifier Notifier
	cache    CounterCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(store Store, tx Tx, notifier Notifier, cache CounterCache, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, tx: tx, notifier: notifier, cache: cache, metrics: m, logger: logger}
}

// Request creates a pending edge from requester to recipient and notifies the
// recipient. A rejected edge between the pair permanently blocks re-requests.
func (s *Service) Request(ctx context.Context, requesterID, recipientID domain.ProfileID) (*models.Connection, error) {
	if requesterID == recipientID {
		return nil, dErrors.New(dErrors.CodeSelfConnection, "cannot connect a profile to itself")
	}

	var (
		edge           *models.Connection
		recipientEmail string
		actorHandle    string
	)

	err := s.tx.RunInTx(ctx, func(store Store) error {
		requester, err := findKnownProfile(ctx, store, requesterID, "requester")
		if err != nil {
			return err
		}
		recipient, err := findKnownProfile(ctx, store, recipientID, "recipient")
		if err != nil {
			return err
		}
		if requester.IsFrozen || recipient.IsFrozen {
			return dErrors.New(dErrors.CodeProfileFrozen, "frozen profiles cannot form connections")
		}

		existing, err := store.FindBetween(ctx, requesterID, recipientID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load existing edges")
		}
		for _, e := range existing {
			switch e.Status {
			case models.ConnectionAccepted:
				return dErrors.New(dErrors.CodeAlreadyConnected, "profiles are already connected")
			case models.ConnectionPending:
				return dErrors.New(dErrors.CodeRequestPending, "a request for this pair is already pending")
			case models.ConnectionRejected:
				return dErrors.New(dErrors.CodePreviouslyRejected, "a previous request for this pair was rejected")
			}
		}

		now := time.Now()
		edge = &models.Connection{
			ID:          domain.ConnectionID(uuid.New()),
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      models.ConnectionPending,
			CreatedAt:   now,
		}
		if err := store.Create(ctx, edge); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost a race against a concurrent request for the pair.
				return dErrors.New(dErrors.CodeRequestPending, "a request for this pair is already pending")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create connection request")
		}

		recipientEmail = recipient.Email
		actorHandle = requester.Handle
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRequested()
	s.notifier.Notify(ctx, notification.Event{
		Kind:             notification.KindConnectionRequested,
		RecipientProfile: recipientID,
		RecipientEmail:   recipientEmail,
		ActorHandle:      actorHandle,
	})
	return edge, nil
}

// Respond resolves a pending edge. Only the recipient may respond, exactly
// once; a double-accept race has exactly one winner and one counter bump per
// side.
func (s *Service) Respond(ctx context.Context, connectionID domain.ConnectionID, actorID domain.ProfileID, action Action) (*models.Connection, error) {
	target := models.ConnectionRejected
	if action == ActionAccept {
		target = models.ConnectionAccepted
	}

	var (
		resolved       *models.Connection
		requesterEmail string
		actorHandle    string
	)

	err := s.tx.RunInTx(ctx, func(store Store) error {
		edge, err := store.FindByID(ctx, connectionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "connection not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load connection")
		}
		if edge.RecipientID != actorID {
			return dErrors.New(dErrors.CodeForbidden, "only the recipient may respond to a request")
		}

		now := time.Now()
		resolved, err = store.ResolveIfPending(ctx, connectionID, target, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				s.metrics.IncResolveConflict()
				return dErrors.New(dErrors.CodeAlreadyResolved, "request already resolved")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "connection not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve connection")
		}

		if target == models.ConnectionAccepted {
			if err := store.IncrementConnectionCounts(ctx, edge.RequesterID, edge.RecipientID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "increment connection counts")
			}
			requester, err := store.FindProfile(ctx, edge.RequesterID)
			if err == nil {
				requesterEmail = requester.Email
			}
			actor, err := store.FindProfile(ctx, actorID)
			if err == nil {
				actorHandle = actor.Handle
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == models.ConnectionAccepted {
		s.metrics.IncAccepted()
		s.invalidate(ctx, resolved.RequesterID, resolved.RecipientID)
		s.notifier.Notify(ctx, notification.Event{
			Kind:             notification.KindConnectionAccepted,
			RecipientProfile: resolved.RequesterID,
			RecipientEmail:   requesterEmail,
			ActorHandle:      actorHandle,
		})
	} else {
		s.metrics.IncRejected()
	}
	return resolved, nil
}

// List returns a profile's accepted edges, most recently resolved first.
func (s *Service) List(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error) {
	edges, err := s.store.ListAccepted(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list connections")
	}
	return edges, nil
}

// ListPending returns pending requests where the profile is the recipient.
func (s *Service) ListPending(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error) {
	edges, err := s.store.ListPendingFor(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending requests")
	}
	return edges, nil
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

func findKnownProfile(ctx context.Context, store Store, id domain.ProfileID, role string) (*profilemodels.Profile, error) {
	p, err := store.FindProfile(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, role+" profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load "+role+" profile")
	}
	return p, nil
}
