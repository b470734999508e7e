package domain

import (
	"github.com/google/uuid"

	dErrors "medigraph/pkg/domain-errors"
)

// Typed IDs keep profile, invite, connection, and verification identifiers
// from being swapped at call sites. Construct via the ParseXxxID helpers at
// trust boundaries; direct casting bypasses validation.
type (
	ProfileID             uuid.UUID
	InviteID              uuid.UUID
	ConnectionID          uuid.UUID
	RecommendationID      uuid.UUID
	VerificationRequestID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseProfileID constructs a ProfileID from external input.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s)
	return ProfileID(u), err
}

func ParseInviteID(s string) (InviteID, error) {
	u, err := parseUUID(s)
	return InviteID(u), err
}

func ParseConnectionID(s string) (ConnectionID, error) {
	u, err := parseUUID(s)
	return ConnectionID(u), err
}

func ParseVerificationRequestID(s string) (VerificationRequestID, error) {
	u, err := parseUUID(s)
	return VerificationRequestID(u), err
}

func (id ProfileID) String() string             { return uuid.UUID(id).String() }
func (id InviteID) String() string              { return uuid.UUID(id).String() }
func (id ConnectionID) String() string          { return uuid.UUID(id).String() }
func (id RecommendationID) String() string      { return uuid.UUID(id).String() }
func (id VerificationRequestID) String() string { return uuid.UUID(id).String() }

func (id ProfileID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }
func (id InviteID) IsNil() bool              { return uuid.UUID(id) == uuid.Nil }
func (id ConnectionID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id VerificationRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
