// Package notification delivers best-effort, post-commit messages triggered
// by trust-graph state transitions. Delivery failures are logged, never
// propagated: a slow or failing sender must not block or roll back a graph
// mutation, so services enqueue after their transaction commits.
package notification

import (
	"time"

	"medigraph/pkg/domain"
)

// Kind identifies the state transition behind an event.
type Kind string

const (
	KindInviteIssued         Kind = "invite_issued"
	KindInviteRedeemed       Kind = "invite_redeemed"
	KindConnectionRequested  Kind = "connection_requested"
	KindConnectionAccepted   Kind = "connection_accepted"
	KindVerificationApproved Kind = "verification_approved"
	KindVerificationRejected Kind = "verification_rejected"
)

// Event is the transport-agnostic payload handed to senders. RecipientEmail
// may be empty (open-link invites have no bound address); senders that need
// an address skip such events.
type Event struct {
	Kind             Kind              `json:"kind"`
	RecipientProfile domain.ProfileID  `json:"recipient_profile,omitempty"`
	RecipientEmail   string            `json:"recipient_email,omitempty"`
	ActorHandle      string            `json:"actor_handle,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
	Data             map[string]string `json:"data,omitempty"`
}
