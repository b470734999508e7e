package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medigraph/internal/notification"
	profilemodels "medigraph/internal/profile/models"
	"medigraph/internal/verification/metrics"
	"medigraph/internal/verification/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/sentinel"
)

// Store is the persistence surface of the verification state machine.
type Store interface {
	// CreateRequest persists a pending review. The at-most-one-pending-per-
	// profile invariant is store-enforced and surfaces as
	// sentinel.ErrConflict.
	CreateRequest(ctx context.Context, req *models.VerificationRequest) error
	FindRequest(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error)
	// ResolveIfPending flips pending → status with the prior state in the
	// update predicate; sentinel.ErrInvalidState when already resolved.
	ResolveIfPending(ctx context.Context, id domain.VerificationRequestID, status models.RequestStatus, resolvedAt time.Time) (*models.VerificationRequest, error)
	SetProfileVerification(ctx context.Context, profileID domain.ProfileID, status profilemodels.VerificationStatus, isVerified bool) error
	FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error)
}

type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

// Service tracks a profile's credential-review lifecycle:
// unverified → pending → verified|rejected, with rejected free to resubmit.
type Service struct {
	store    Store
	tx       Tx
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(store Store, tx Tx, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, tx: tx, notifier: notifier, metrics: m, logger: logger}
}

// Submit opens a credential review. A submission while another review is
// pending is rejected rather than superseding it.
func (s *Service) Submit(ctx context.Context, profileID domain.ProfileID, documentRefs []string) (*models.VerificationRequest, error) {
	if len(documentRefs) < models.MinDocumentRefs || len(documentRefs) > models.MaxDocumentRefs {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "between 1 and 3 document references are required")
	}
	for _, ref := range documentRefs {
		if ref == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "document references cannot be empty")
		}
	}

	var req *models.VerificationRequest
	err := s.tx.RunInTx(ctx, func(store Store) error {
		profile, err := store.FindProfile(ctx, profileID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "profile not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load profile")
		}
		if profile.IsFrozen {
			return dErrors.New(dErrors.CodeProfileFrozen, "frozen profiles cannot submit credentials")
		}
		if !profile.VerificationStatus.CanTransitionTo(profilemodels.VerificationPending) {
			if profile.VerificationStatus == profilemodels.VerificationPending {
				return dErrors.New(dErrors.CodeAlreadyPending, "a credential review is already pending")
			}
			return dErrors.New(dErrors.CodeConflict, "profile is already verified")
		}

		req = &models.VerificationRequest{
			ID:           domain.VerificationRequestID(uuid.New()),
			ProfileID:    profileID,
			DocumentRefs: documentRefs,
			Status:       models.RequestPending,
			SubmittedAt:  time.Now(),
		}
		if err := store.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyPending, "a credential review is already pending")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create verification request")
		}
		if err := store.SetProfileVerification(ctx, profileID, profilemodels.VerificationPending, profile.IsVerified); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update profile verification status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSubmitted()
	return req, nil
}

// Resolve applies an admin decision. The request's status and the profile's
// verification fields change in the same transaction; a concurrent double
// resolution has exactly one winner.
func (s *Service) Resolve(ctx context.Context, requestID domain.VerificationRequestID, decision models.Decision) (*models.VerificationRequest, error) {
	var (
		resolved     *models.VerificationRequest
		ownerEmail   string
		targetStatus models.RequestStatus
	)

	err := s.tx.RunInTx(ctx, func(store Store) error {
		now := time.Now()
		targetStatus = models.RequestRejected
		profileStatus := profilemodels.VerificationRejected
		isVerified := false
		if decision == models.DecisionApprove {
			targetStatus = models.RequestApproved
			profileStatus = profilemodels.VerificationVerified
			isVerified = true
		}

		var err error
		resolved, err = store.ResolveIfPending(ctx, requestID, targetStatus, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "verification request not found")
			}
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeAlreadyResolved, "verification request already resolved")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve verification request")
		}

		if err := store.SetProfileVerification(ctx, resolved.ProfileID, profileStatus, isVerified); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update profile verification status")
		}

		if owner, err := store.FindProfile(ctx, resolved.ProfileID); err == nil {
			ownerEmail = owner.Email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := notification.KindVerificationRejected
	if targetStatus == models.RequestApproved {
		s.metrics.IncApproved()
		kind = notification.KindVerificationApproved
	} else {
		s.metrics.IncRejected()
	}
	s.notifier.Notify(ctx, notification.Event{
		Kind:             kind,
		RecipientProfile: resolved.ProfileID,
		RecipientEmail:   ownerEmail,
	})
	return resolved, nil
}
