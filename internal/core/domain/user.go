package domain

// User is the authenticated identity issued by the backend.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Notification is a user-visible confirmation message.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
