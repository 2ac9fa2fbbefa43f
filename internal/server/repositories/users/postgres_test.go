package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at", "refresh_token", "refresh_token_expiry_time"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*password_hash,\s*role,\s*created_at,\s*refresh_token,\s*refresh_token_expiry_time\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+id\s*$`

	u := newUser("alice@example.com")
	mock.ExpectQuery(q).
		WithArgs("Jane", "alice@example.com", u.PasswordHash, "Seller", createdAt, sql.NullString{}, time.Time{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), newUser("alice@example.com"))
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestPostgresCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), newUser("alice@example.com"))
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPostgresFindByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*name,\s*email,\s*password_hash,\s*role,\s*created_at,\s*refresh_token,\s*refresh_token_expiry_time\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`

	expiry := createdAt.Add(time.Hour)
	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(7), "Jane", "jane@example.com", "hash", "Buyer", createdAt.In(time.FixedZone("X", 3600)), "tok", expiry)
	mock.ExpectQuery(q).WithArgs("jane@example.com").WillReturnRows(rows)

	got, err := repo.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, models.RoleBuyer, got.Role)
	assert.Equal(t, createdAt, got.CreatedAt)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "tok", *got.RefreshToken)
	assert.Equal(t, expiry, got.RefreshTokenExpiryTime)
}

func TestPostgresFindByID_NullToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(7), "Jane", "jane@example.com", "hash", "Admin", createdAt, nil, time.Time{})
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).WithArgs(int64(7)).WillReturnRows(rows)

	got, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)
	assert.True(t, got.RefreshTokenExpiryTime.IsZero())
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestPostgresFindByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgresFindByID_BadRole(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(7), "Jane", "jane@example.com", "hash", "Root", createdAt, nil, time.Time{})
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WillReturnRows(rows)

	_, err := repo.FindByID(context.Background(), 7)
	assert.ErrorIs(t, err, common.ErrInvalidRole)
}

func TestPostgresExistsByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\)$`
	mock.ExpectQuery(q).WithArgs("a@example.com").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q).WithArgs("b@example.com").WillReturnError(errors.New("db err"))

	ok, err := repo.ExistsByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.ExistsByEmail(context.Background(), "b@example.com")
	assert.ErrorContains(t, err, "db err")
}

func TestPostgresUpdateAuthFields(t *testing.T) {
	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token\s*=\s*\$1,\s*refresh_token_expiry_time\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s*$`
	tok := "tok"

	t.Run("sets", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).
			WithArgs(sql.NullString{String: tok, Valid: true}, createdAt, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateAuthFields(context.Background(), 3, models.AuthFields{RefreshToken: &tok, RefreshTokenExpiryTime: createdAt})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clears", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).
			WithArgs(sql.NullString{}, time.Time{}, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateAuthFields(context.Background(), 3, models.AuthFields{}))
	})

	t.Run("missing user", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateAuthFields(context.Background(), 3, models.AuthFields{}), common.ErrNotFound)
	})
}

func TestPostgresSwapAuthFields(t *testing.T) {
	sel := `(?s)^SELECT\s+refresh_token\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	upd := `(?s)^UPDATE\s+users\s+SET\s+refresh_token`
	next := "next"
	fields := models.AuthFields{RefreshToken: &next, RefreshTokenExpiryTime: createdAt}

	t.Run("matching token commits", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow("old"))
		mock.ExpectExec(upd).WithArgs(sql.NullString{String: next, Valid: true}, createdAt, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SwapAuthFields(context.Background(), 5, "old", fields))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale token rolls back", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow("newer"))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.SwapAuthFields(context.Background(), 5, "old", fields), common.ErrVersionConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no session rolls back", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow(nil))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.SwapAuthFields(context.Background(), 5, "old", fields), common.ErrVersionConflict)
	})

	t.Run("missing user", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.SwapAuthFields(context.Background(), 5, "old", fields), common.ErrNotFound)
	})

	t.Run("begin fails", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("no conn"))

		assert.ErrorContains(t, repo.SwapAuthFields(context.Background(), 5, "old", fields), "no conn")
	})
}
