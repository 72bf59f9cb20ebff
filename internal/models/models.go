package models

import (
	"time"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	UserEmail *string   `json:"user_email,omitempty" db:"user_email"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	RequestID string    `json:"request_id,omitempty" db:"request_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated caller extracted from a bearer token
type Principal struct {
	UserID uint     `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// HasRole reports whether the principal carries the named role
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
