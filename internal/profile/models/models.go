package models

import (
	"time"

	"medigraph/pkg/domain"
)

// VerificationStatus tracks a profile's credential-review lifecycle.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// legalVerificationTransitions is the single source of truth for the
// unverified → pending → verified|rejected machine. A rejected profile may
// resubmit and re-enter pending.
var legalVerificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationUnverified: {VerificationPending},
	VerificationPending:    {VerificationVerified, VerificationRejected},
	VerificationRejected:   {VerificationPending},
	VerificationVerified:   {},
}

// CanTransitionTo reports whether the status machine permits the move.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	for _, allowed := range legalVerificationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationUnverified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Profile is a medical professional's account. The two counters are derived
// caches co-written with the edge and recommendation rows that justify them;
// they are never recomputed from the source tables on the read path.
type Profile struct {
	ID                  domain.ProfileID
	Handle              string
	Email               string
	PasswordHash        []byte
	ConnectionCount     int
	RecommendationCount int
	VerificationStatus  VerificationStatus
	IsVerified          bool
	IsFrozen            bool
	CreatedAt           time.Time
}

// Card is the public projection served on profile pages.
type Card struct {
	ID                  domain.ProfileID `json:"id"`
	Handle              string           `json:"handle"`
	ConnectionCount     int              `json:"connection_count"`
	RecommendationCount int              `json:"recommendation_count"`
	VerificationStatus  string           `json:"verification_status"`
	IsVerified          bool             `json:"is_verified"`
}

// CardOf projects a profile onto its public card.
func CardOf(p *Profile) Card {
	return Card{
		ID:                  p.ID,
		Handle:              p.Handle,
		ConnectionCount:     p.ConnectionCount,
		RecommendationCount: p.RecommendationCount,
		VerificationStatus:  string(p.VerificationStatus),
		IsVerified:          p.IsVerified,
	}
}
