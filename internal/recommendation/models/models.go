package models

import (
	"time"

	"medigraph/pkg/domain"
)

// Recommendation is a positive-only endorsement. At most one row exists per
// (profile, recommender key) pair; rows are never mutated or deleted. The
// model has no negative variant at all.
type Recommendation struct {
	ID             domain.RecommendationID
	ProfileID      domain.ProfileID
	RecommenderKey string
	CreatedAt      time.Time
}
