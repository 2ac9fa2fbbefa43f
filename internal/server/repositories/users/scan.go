package users

import (
	"database/sql"
	"fmt"

	"github.com/carmarket/marketauth/internal/server/models"
)

const selectColumns = `id, name, email, password_hash, role, created_at, refresh_token, refresh_token_expiry_time`

type rowScanner interface {
	Scan(dest ...any) error
}

// userRow holds the columns shared by the SQL adapters; timestamps are
// scanned into T because Postgres returns time.Time and SQLite unix millis.
type userRow[T any] struct {
	user      models.User
	role      string
	token     sql.NullString
	createdAt T
	expiresAt T
}

func (r *userRow[T]) scan(s rowScanner) error {
	return s.Scan(&r.user.ID, &r.user.Name, &r.user.Email, &r.user.PasswordHash,
		&r.role, &r.createdAt, &r.token, &r.expiresAt)
}

func (r *userRow[T]) finish() (*models.User, error) {
	role, err := models.ParseRole(r.role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", r.user.ID, err)
	}
	r.user.Role = role
	if r.token.Valid {
		tok := r.token.String
		r.user.RefreshToken = &tok
	}
	return &r.user, nil
}

func nullToken(tok *string) sql.NullString {
	if tok == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *tok, Valid: true}
}
