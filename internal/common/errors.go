// Package common defines shared constants and sentinel errors used across
// the server, transport and client layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrInternal    = errors.New("internal error")
	ErrPersistence = errors.New("persistence error")

	// Validation errors.
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors. Unknown email and wrong password both yield
	// ErrInvalidCredentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
