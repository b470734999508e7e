package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"medigraph/pkg/domain"
)

// InviteStatus is the one-shot lifecycle of an invitation code.
type InviteStatus string

const (
	InviteActive   InviteStatus = "active"
	InviteRedeemed InviteStatus = "redeemed"
	InviteExpired  InviteStatus = "expired"
)

// codeBytes gives 192 bits of entropy, encoded URL-safe to 32 characters.
const codeBytes = 24

// Invite is a redeemable token bound to exactly one inviting profile. A nil
// Email means an open share-link invite. The active → redeemed transition
// happens exactly once and is always paired with a Connection creation.
type Invite struct {
	ID                  domain.InviteID
	InviterProfileID    domain.ProfileID
	Email               *string
	Code                string
	Status              InviteStatus
	RedeemedByProfileID *domain.ProfileID
	CreatedAt           time.Time
	// ExpiresAt is advisory policy, checked lazily at redemption. Nil means
	// the code never expires.
	ExpiresAt *time.Time
}

// NewCode returns a cryptographically unguessable URL-safe invite code.
func NewCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ExpiredAt reports whether the invite's redemption window has passed.
func (i *Invite) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}
