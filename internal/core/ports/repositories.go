package ports

import (
	"context"
	"time"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// RoleRepository reads the user_roles table.
type RoleRepository interface {
	// FindRole returns the raw role value for userID, or domain.ErrNotFound.
	FindRole(ctx context.Context, userID string) (string, error)
}

// RequesterProfileRow is one row of the get_profile_for_requester call as
// the backend sent it. PhoneVisible is kept untyped so it can be coerced.
type RequesterProfileRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	PhoneNumber  *string   `json:"phone_number"`
	Location     string    `json:"location"`
	District     *string   `json:"district"`
	AvatarURL    *string   `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PhoneVisible any       `json:"phone_visible"`
}

// ProfileRepository reads the profiles table and the requester RPC.
type ProfileRepository interface {
	// FindSelfProfile returns the owner's row, or domain.ErrNotFound.
	FindSelfProfile(ctx context.Context, userID string) (*domain.SelfProfile, error)
	// ProfileForRequester evaluates the server-side visibility policy for the
	// caller's implicit identity and targetUserID.
	ProfileForRequester(ctx context.Context, targetUserID string) ([]RequesterProfileRow, error)
}

// AuditRepository persists session transitions.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
}
