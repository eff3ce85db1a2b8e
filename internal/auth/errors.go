package auth

import (
	"errors"
	"fmt"
)

// GenericLoginMessage is shown for every failed login regardless of cause.
const GenericLoginMessage = "incorrect username or password"

var (
	// ErrTokenInvalid covers absent, mismatched, expired and already consumed
	// reset tokens.
	ErrTokenInvalid = errors.New("password reset token is invalid or has expired")
	// ErrNoSuchAccount is returned when a reset is requested for an unknown email.
	ErrNoSuchAccount = errors.New("no account with that email address exists")
)

// ValidationError reports input that was rejected before anything was stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthFailureReason says why credentials were rejected. It is for logs only;
// callers show GenericLoginMessage.
type AuthFailureReason int

const (
	UnknownUser AuthFailureReason = iota + 1
	BadPassword
)

func (r AuthFailureReason) String() string {
	switch r {
	case UnknownUser:
		return "unknown_user"
	case BadPassword:
		return "bad_password"
	default:
		return fmt.Sprintf("AuthFailureReason(%d)", int(r))
	}
}

type AuthFailure struct {
	Reason AuthFailureReason
}

func (e *AuthFailure) Error() string { return GenericLoginMessage }

// MailDeliveryError wraps a notification failure. The state change that
// preceded the send has already been persisted and stays in place.
type MailDeliveryError struct {
	To  string
	Err error
}

func (e *MailDeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver email to %s: %v", e.To, e.Err)
}

func (e *MailDeliveryError) Unwrap() error { return e.Err }
