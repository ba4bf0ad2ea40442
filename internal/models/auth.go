package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a new account. Santri registrations carry the
// enrollment profile; the role decides which fields are required.
type RegisterRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	FullName    string   `json:"full_name" validate:"required,min=2"`
	Role        UserRole `json:"role" validate:"required,oneof=USTADZ SANTRI"`
	NIS         string   `json:"nis,omitempty"`
	Class       string   `json:"class,omitempty"`
	Jilid       string   `json:"jilid,omitempty"`
	ParentName  string   `json:"parent_name,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Address     string   `json:"address,omitempty"`
	IP          string   `json:"-"`
	UserAgent   string   `json:"-"`
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
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	Role           UserRole       `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
}

// ApprovalStatusInfo is the payload of the own-status endpoint, the one
// surface available to accounts that are not yet approved.
type ApprovalStatusInfo struct {
	UserID         string         `json:"user_id"`
	Role           UserRole       `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	RegisteredAt   time.Time      `json:"registered_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID         string         `json:"user_id"`
	Role           UserRole       `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	jwt.RegisteredClaims
}
