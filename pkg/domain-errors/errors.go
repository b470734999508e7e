// Package dErrors provides code-carrying domain errors. Services construct
// these from sentinel/store facts; handlers translate them to HTTP statuses
// without inspecting message text.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain error class. Codes are part of the API contract:
// they appear verbatim in JSON error envelopes.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
	CodeTimeout      Code = "timeout"
	CodeConflict     Code = "conflict"

	// Trust-graph preconditions. Deterministic rejections: the request is
	// invalid given current state, retrying without a state change is useless.
	CodeSelfConnection     Code = "self_connection"
	CodeSelfRedemption     Code = "self_redemption"
	CodeAlreadyConnected   Code = "already_connected"
	CodeRequestPending     Code = "request_pending"
	CodePreviouslyRejected Code = "previously_rejected"
	CodeAlreadyPending     Code = "already_pending"
	CodeProfileFrozen      Code = "profile_frozen"
	CodeHandleTaken        Code = "handle_taken"

	// Race-loser outcomes. Another caller won a conditional state transition;
	// "someone already did this", not a failure requiring alarm.
	CodeAlreadyRedeemed Code = "already_redeemed"
	CodeInviteExpired   Code = "invite_expired"
	CodeAlreadyResolved Code = "already_resolved"
)

// Error is the only error type services return across package boundaries.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err is a domain error carrying the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for readability at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to an HTTP status. Race-loser and
// duplicate-state codes map to 409 so clients can treat them as
// success-adjacent; self-referential preconditions map to 422.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeProfileFrozen:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeConflict, CodeAlreadyConnected, CodeRequestPending,
		CodePreviouslyRejected, CodeAlreadyPending, CodeHandleTaken,
		CodeAlreadyRedeemed, CodeInviteExpired, CodeAlreadyResolved:
		return http.StatusConflict
	case CodeSelfConnection, CodeSelfRedemption:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
