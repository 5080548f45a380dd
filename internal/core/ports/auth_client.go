package ports

import (
	"context"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// SignInResult is what the backend returns for a password sign-in. Session is
// nil when the credentials were accepted but the backend defers the session
// (email confirmation flows).
type SignInResult struct {
	Session *domain.Session
	User    *domain.User
}

// SignUpMetadata is attached to the new account. A trusted server-side
// trigger reads it to create the role row; the client never writes it.
type SignUpMetadata struct {
	FullName string  `json:"full_name"`
	Location string  `json:"location"`
	Role     string  `json:"role"`
	Phone    *string `json:"phone"`
}

// SignUpInput carries the credentials and metadata for a new account.
type SignUpInput struct {
	Email    string
	Password string
	Metadata SignUpMetadata
}

// SignUpResult is what the backend returns for a sign-up. User is nil when
// the backend reported no resulting identity.
type SignUpResult struct {
	User    *domain.User
	Session *domain.Session
}

// AuthStateListener receives auth-change notifications in delivery order.
type AuthStateListener func(change domain.AuthChange)

// Subscription cancels an auth-change listener.
type Subscription interface {
	Unsubscribe()
}

// AuthClient is the credential half of the backend client boundary.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)
	SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	// GetSession returns the persisted session, or nil when there is none.
	GetSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(listener AuthStateListener) Subscription
}
