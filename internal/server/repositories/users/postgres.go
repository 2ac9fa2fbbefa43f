package users

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/dbx"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE email = $1
		 `
	return r.findOne(ctx, query, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var row userRow[time.Time]
	if err := row.scan(r.db.QueryRowContext(ctx, query, arg)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u, err := row.finish()
	if err != nil {
		return nil, err
	}
	u.CreatedAt = row.createdAt.UTC()
	u.RefreshTokenExpiryTime = row.expiresAt.UTC()
	return u, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (name, email, password_hash, role, created_at, refresh_token, refresh_token_expiry_time)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role.String(), user.CreatedAt.UTC(),
		nullToken(user.RefreshToken), user.RefreshTokenExpiryTime.UTC()).Scan(&user.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) UpdateAuthFields(ctx context.Context, id int64, fields models.AuthFields) error {
	return r.updateAuthFields(ctx, r.db, id, fields)
}

func (r *PostgresRepository) updateAuthFields(ctx context.Context, db dbx.DBTX, id int64, fields models.AuthFields) error {
	query :=
		`UPDATE users SET refresh_token = $1, refresh_token_expiry_time = $2
		 WHERE id = $3
		 `

	res, err := db.ExecContext(ctx, query, nullToken(fields.RefreshToken), fields.RefreshTokenExpiryTime.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SwapAuthFields locks the row, compares the stored token and writes the
// new pair in one transaction.
func (r *PostgresRepository) SwapAuthFields(ctx context.Context, id int64, expected string, fields models.AuthFields) error {
	return inTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`SELECT refresh_token FROM users
			 WHERE id = $1
			 FOR UPDATE
			 `

		var current sql.NullString
		if err := tx.QueryRowContext(ctx, query, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if !current.Valid || subtle.ConstantTimeCompare([]byte(current.String), []byte(expected)) != 1 {
			return common.ErrVersionConflict
		}
		return r.updateAuthFields(ctx, tx, id, fields)
	})
}

// inTx opens a transaction when db can begin one; a handle that is
// already a transaction is used as is.
func inTx(ctx context.Context, db dbx.DBTX, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if b, ok := db.(dbx.TxBeginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, db)
}
