package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the CredentialError kind: the backend rejected
	// the email/password pair or the sign-up payload.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountCreation is returned when sign-up reported success but no
	// identity came back.
	ErrAccountCreation = errors.New("user creation failed")

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("access forbidden")
)

// RequesterLookupError is the one error kind the core propagates: the
// server-evaluated profile lookup failed. It is distinct from a nil profile,
// which means the target does not exist.
type RequesterLookupError struct {
	TargetUserID string
	Err          error
}

func (e *RequesterLookupError) Error() string {
	return fmt.Sprintf("profile lookup for %s: %v", e.TargetUserID, e.Err)
}

func (e *RequesterLookupError) Unwrap() error { return e.Err }
