package domain

import "time"

// SelfProfile is the signed-in identity's own profile row, unfiltered.
type SelfProfile struct {
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Location    string  `json:"location"`
}

// RequesterProfile is another identity's profile as filtered by the backend
// for a specific requester. PhoneNumber may be redacted regardless of
// PhoneVisible; the visibility decision is never re-derived locally.
type RequesterProfile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	PhoneNumber  *string   `json:"phone_number"`
	Location     string    `json:"location"`
	District     *string   `json:"district"`
	AvatarURL    *string   `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PhoneVisible bool      `json:"phone_visible"`
}

// RequesterProfileKey is the lifetime key of a requester-profile lookup.
func RequesterProfileKey(targetUserID string) string {
	return "profile_for_requester:" + targetUserID
}
