package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthSource records which credential store verified the user.
type AuthSource string

const (
	AuthSourceMoodle AuthSource = "moodle"
	AuthSourceLocal  AuthSource = "local"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	Username string     `json:"username"`
	FullName string     `json:"full_name,omitempty"`
	Source   AuthSource `json:"source"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Username string     `json:"username"`
	FullName string     `json:"full_name,omitempty"`
	Source   AuthSource `json:"source"`
	jwt.RegisteredClaims
}
