package domain

import "time"

// AuditEvent records one session transition observed by this process.
type AuditEvent struct {
	ID        string    `json:"id" bson:"_id"`
	Kind      string    `json:"kind" bson:"kind"`
	UserID    string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Role      Role      `json:"role,omitempty" bson:"role,omitempty"`
	Outcome   string    `json:"outcome" bson:"outcome"`
	Detail    string    `json:"detail,omitempty" bson:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Audit event kinds.
const (
	AuditSignIn      = "sign_in"
	AuditSignUp      = "sign_up"
	AuditSignOut     = "sign_out"
	AuditAuthChange  = "auth_change"
	AuditRoleResolve = "role_resolved"
)
