// Package models holds the domain types shared by the auth service, the
// stores and the transports.
package models

import "time"

// User is the account record. Only RefreshToken and RefreshTokenExpiryTime
// change after creation.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`

	RefreshToken           *string   `json:"-"`
	RefreshTokenExpiryTime time.Time `json:"-"`
}

// AuthFields is the session pair written by login, refresh and logout.
// A nil RefreshToken means no active session.
type AuthFields struct {
	RefreshToken           *string
	RefreshTokenExpiryTime time.Time
}

// HasActiveSession reports whether a refresh token is stored and still
// valid at now.
func (u *User) HasActiveSession(now time.Time) bool {
	return u.RefreshToken != nil && now.Before(u.RefreshTokenExpiryTime)
}

// Clone returns a deep copy, so stores can hand out records without
// sharing the refresh token pointer.
func (u *User) Clone() *User {
	c := *u
	if u.RefreshToken != nil {
		tok := *u.RefreshToken
		c.RefreshToken = &tok
	}
	return &c
}
