package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/dbx"
	"github.com/carmarket/marketauth/internal/server/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository stores timestamps as unix milliseconds (UTC).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+selectColumns+` FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+selectColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var row userRow[int64]
	if err := row.scan(r.db.QueryRowContext(ctx, query, arg)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	u, err := row.finish()
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(row.createdAt).UTC()
	u.RefreshTokenExpiryTime = time.UnixMilli(row.expiresAt).UTC()
	return u, nil
}

func (r *SQLiteRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return exists, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at, refresh_token, refresh_token_expiry_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, user.Role.String(), user.CreatedAt.UnixMilli(),
		nullToken(user.RefreshToken), user.RefreshTokenExpiryTime.UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *SQLiteRepository) UpdateAuthFields(ctx context.Context, id int64, fields models.AuthFields) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, refresh_token_expiry_time = ? WHERE id = ?`,
		nullToken(fields.RefreshToken), fields.RefreshTokenExpiryTime.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("update auth fields: %w", err)
	}
	return requireAffected(result)
}

// SwapAuthFields uses a conditional UPDATE; when no row matches, a second
// read inside the same transaction tells a missing user from a stale token.
func (r *SQLiteRepository) SwapAuthFields(ctx context.Context, id int64, expected string, fields models.AuthFields) error {
	return inTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET refresh_token = ?, refresh_token_expiry_time = ?
			 WHERE id = ? AND refresh_token = ?`,
			nullToken(fields.RefreshToken), fields.RefreshTokenExpiryTime.UnixMilli(), id, expected,
		)
		if err != nil {
			return fmt.Errorf("swap auth fields: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("swap auth fields: %w", err)
		}
		if n == 1 {
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("query user exists: %w", err)
		}
		if !exists {
			return common.ErrNotFound
		}
		return common.ErrVersionConflict
	})
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
