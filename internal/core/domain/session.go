package domain

import "time"

// SessionState is the lifecycle state of the current session.
type SessionState string

const (
	SessionAbsent      SessionState = "absent"
	SessionPending     SessionState = "pending"
	SessionEstablished SessionState = "established"
)

// Session is the credential bundle tied to exactly one User.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// A session without a known expiry never expires locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// UserID returns the identity behind s, or "" when there is none.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// AuthEventKind names a backend auth-change notification.
type AuthEventKind string

const (
	AuthInitialSession AuthEventKind = "INITIAL_SESSION"
	AuthSignedIn       AuthEventKind = "SIGNED_IN"
	AuthSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthChange is one auth-change notification. Session is nil when the
// notification carries no session.
type AuthChange struct {
	Kind    AuthEventKind
	Session *Session
}
