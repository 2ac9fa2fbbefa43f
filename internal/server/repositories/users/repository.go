// Package users defines the user record store and its adapters:
// PostgreSQL, SQLite, Redis and an in-memory map.
//
// Every adapter returns common.ErrNotFound for unknown users and
// common.ErrDuplicateEmail when Create hits an existing email. Other
// failures are wrapped driver errors.
package users

import (
	"context"

	"github.com/carmarket/marketauth/internal/server/models"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create assigns user.ID and returns the stored record.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// UpdateAuthFields overwrites the refresh token pair unconditionally.
	UpdateAuthFields(ctx context.Context, id int64, fields models.AuthFields) error

	// SwapAuthFields writes fields only if the stored refresh token still
	// equals expected, and returns common.ErrVersionConflict otherwise.
	SwapAuthFields(ctx context.Context, id int64, expected string, fields models.AuthFields) error
}
