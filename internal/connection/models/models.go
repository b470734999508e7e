package models

import (
	"time"

	"medigraph/pkg/domain"
)

// ConnectionStatus is the edge lifecycle. pending → accepted|rejected happens
// exactly once; invite-originated edges are created accepted directly.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

var legalTransitions = map[ConnectionStatus][]ConnectionStatus{
	ConnectionPending:  {ConnectionAccepted, ConnectionRejected},
	ConnectionAccepted: {},
	ConnectionRejected: {},
}

func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Connection is an edge between two distinct profiles, directional at
// creation but symmetric once accepted. Edges are never deleted; a rejected
// edge permanently blocks re-creation for the pair.
type Connection struct {
	ID          domain.ConnectionID
	RequesterID domain.ProfileID
	RecipientID domain.ProfileID
	Status      ConnectionStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Involves reports whether the edge touches the given profile.
func (c *Connection) Involves(id domain.ProfileID) bool {
	return c.RequesterID == id || c.RecipientID == id
}

// Other returns the far side of the edge as seen from id.
func (c *Connection) Other(id domain.ProfileID) domain.ProfileID {
	if c.RequesterID == id {
		return c.RecipientID
	}
	return c.RequesterID
}

// SamePair reports whether the edge joins the same unordered pair.
func (c *Connection) SamePair(a, b domain.ProfileID) bool {
	return (c.RequesterID == a && c.RecipientID == b) ||
		(c.RequesterID == b && c.RecipientID == a)
}
