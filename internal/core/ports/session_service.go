package ports

import (
	"context"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// ThemeApplier owns the process-wide presentation tag.
type ThemeApplier interface {
	// Apply replaces the active tag. It must be idempotent.
	Apply(theme domain.Theme)
}

// Notifier shows a user-visible confirmation.
type Notifier interface {
	Notify(n domain.Notification)
}

// AuthState is a consistent snapshot of the authenticated context.
type AuthState struct {
	User         *domain.User        `json:"user"`
	Session      *domain.Session     `json:"session"`
	SessionState domain.SessionState `json:"session_state"`
	Role         domain.Role         `json:"role"`
	Profile      *domain.SelfProfile `json:"profile"`
	Loading      bool                `json:"loading"`
}

// StateListener is called with every new snapshot.
type StateListener func(state AuthState)

// SignInOutcome distinguishes an established session from a pending
// confirmation. ConfirmationPending is never an error.
type SignInOutcome struct {
	Session             *domain.Session
	ConfirmationPending bool
}

// SignUpRequest is the sign-up intent as entered by the user.
type SignUpRequest struct {
	Email    string
	Password string
	FullName string
	Location string
	Role     domain.Role
	Phone    *string
}

// SessionService is the session orchestrator contract.
type SessionService interface {
	Initialize(ctx context.Context)
	Ready() <-chan struct{}
	Close()
	SignIn(ctx context.Context, email, password string) (SignInOutcome, error)
	SignUp(ctx context.Context, req SignUpRequest) error
	SignOut(ctx context.Context)
	State() AuthState
	Observe(listener StateListener) (cancel func())
}

// RequesterProfileService fetches policy-filtered profiles of other users.
type RequesterProfileService interface {
	Fetch(ctx context.Context, targetUserID string) (*domain.RequesterProfile, error)
}
