package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	profilemodels "medigraph/internal/profile/models"
	"medigraph/internal/recommendation/metrics"
	"medigraph/internal/recommendation/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/sentinel"
)

// Store is the persistence surface of the recommendation ledger. Duplicate
// detection lives in the store's uniqueness constraint, not in a prior read:
// a read-then-insert without the constraint would have a race window.
type Store interface {
	// Insert persists a recommendation; sentinel.ErrConflict when the
	// (profile, recommender key) pair already exists.
	Insert(ctx context.Context, rec *models.Recommendation) error
	IncrementRecommendationCount(ctx context.Context, profileID domain.ProfileID) error
	FindProfile(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error)
}

type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

type CounterCache interface {
	Invalidate(ctx context.Context, id domain.ProfileID) error
}

// Service records at-most-one recommendation per (profile, recommender key)
// pair. Recommendations are positive-only and permanent; there is no
// un-recommend operation.
type Service struct {
	store   Store
	tx      Tx
	cache   CounterCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store Store, tx Tx, cache CounterCache, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, tx: tx, cache: cache, metrics: m, logger: logger}
}

// Give attempts to record a recommendation. A duplicate is a normal outcome,
// not an error: created=false tells the caller "already recommended" and the
// counter is untouched. The recommender key is opaque; the ledger never
// merges keys.
func (s *Service) Give(ctx context.Context, profileID domain.ProfileID, recommenderKey string) (created bool, err error) {
	if recommenderKey == "" {
		return false, dErrors.New(dErrors.CodeInvalidInput, "recommender key cannot be empty")
	}

	err = s.tx.RunInTx(ctx, func(store Store) error {
		profile, err := store.FindProfile(ctx, profileID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "profile not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load profile")
		}
		if profile.IsFrozen {
			return dErrors.New(dErrors.CodeProfileFrozen, "frozen profiles cannot receive recommendations")
		}

		rec := &models.Recommendation{
			ID:             domain.RecommendationID(uuid.New()),
			ProfileID:      profileID,
			RecommenderKey: recommenderKey,
			CreatedAt:      time.Now(),
		}
		if err := store.Insert(ctx, rec); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Already recommended; leave the counter untouched.
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert recommendation")
		}
		if err := store.IncrementRecommendationCount(ctx, profileID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "increment recommendation count")
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		s.metrics.IncCreated()
		if s.cache != nil {
			if cerr := s.cache.Invalidate(ctx, profileID); cerr != nil {
				s.logger.WarnContext(ctx, "counter cache invalidation failed",
					"profile_id", profileID.String(),
					"error", cerr,
				)
			}
		}
	} else {
		s.metrics.IncDuplicate()
	}
	return created, nil
}
