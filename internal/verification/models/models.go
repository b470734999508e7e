package models

import (
	"time"

	"medigraph/pkg/domain"
)

// RequestStatus is the lifecycle of one credential review.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Decision is an admin resolution verb.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), true
	}
	return "", false
}

// Document limits per request.
const (
	MinDocumentRefs = 1
	MaxDocumentRefs = 3
)

// VerificationRequest is one in-flight credential review. At most one pending
// request exists per profile; a new submission while one is pending is
// rejected rather than superseding it.
type VerificationRequest struct {
	ID           domain.VerificationRequestID
	ProfileID    domain.ProfileID
	DocumentRefs []string
	Status       RequestStatus
	SubmittedAt  time.Time
	ResolvedAt   *time.Time
}
