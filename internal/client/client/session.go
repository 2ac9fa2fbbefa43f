package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the token pair held after a login, with the claims the
// client reads from the access token.
type Session struct {
	UserID       int64
	Name         string
	Role         string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// newSession reads the access token claims without checking the
// signature; only the server can verify it.
func newSession(accessToken, refreshToken string) (Session, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Session{}, fmt.Errorf("parse access token: %w", err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Session{}, fmt.Errorf("parse access token subject: %w", err)
	}

	s := Session{
		UserID:       id,
		Name:         claims.Name,
		Role:         claims.Role,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
