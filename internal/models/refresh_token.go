package models

import "time"

type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRevoked TokenStatus = "revoked"
	TokenStatusExpired TokenStatus = "expired"
)

// RefreshToken is a single login session. The token string is opaque and
// never mutated in place: rotation revokes this row and inserts a new one.
type RefreshToken struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Token     string      `json:"token"`
	UserAgent string      `json:"user_agent"`
	IPAddress string      `json:"ip_address"`
	Status    TokenStatus `json:"status"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
