// Package proto declares the carmarket.auth.v1.AuthService gRPC contract:
// request and response messages, the service descriptor, and client and
// server bindings. Messages travel as JSON (see CodecName).
package proto

import (
	"time"
)

type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,trimmed_email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required"`
}

type RegisterUserResponse struct {
	Id        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,trimmed_email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	UserId       int64  `json:"userId" validate:"gt=0"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is empty; the user comes from the access token.
type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool `json:"success"`
}
