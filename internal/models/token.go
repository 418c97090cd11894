package models

import "time"

// RefreshToken represents a refresh token session held in Redis. Expiry is
// enforced twice: by the stored ExpiresAt and by the key TTL.
type RefreshToken struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Source    AuthSource `json:"source"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent"`
}
