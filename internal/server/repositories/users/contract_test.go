package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newUser(email string) *models.User {
	return &models.User{
		Name:         "Jane",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		Role:         models.RoleSeller,
		CreatedAt:    createdAt,
	}
}

func ptr(s string) *string { return &s }

// testRepositoryContract runs the behavior every adapter must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create assigns ids and round-trips", func(t *testing.T) {
		repo := newRepo(t)

		a, err := repo.Create(ctx, newUser("a@example.com"))
		require.NoError(t, err)
		b, err := repo.Create(ctx, newUser("b@example.com"))
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)

		got, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
		assert.Nil(t, got.RefreshToken)
		assert.True(t, got.RefreshTokenExpiryTime.IsZero())

		got, err = repo.FindByEmail(ctx, "b@example.com")
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, models.RoleSeller, got.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, newUser("dup@example.com"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, newUser("dup@example.com"))
		assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	})

	t.Run("unknown users", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByID(ctx, 404)
		assert.ErrorIs(t, err, common.ErrNotFound)
		_, err = repo.FindByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, repo.UpdateAuthFields(ctx, 404, models.AuthFields{}), common.ErrNotFound)
		assert.ErrorIs(t, repo.SwapAuthFields(ctx, 404, "x", models.AuthFields{}), common.ErrNotFound)
	})

	t.Run("exists by email", func(t *testing.T) {
		repo := newRepo(t)

		ok, err := repo.ExistsByEmail(ctx, "e@example.com")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.Create(ctx, newUser("e@example.com"))
		require.NoError(t, err)

		ok, err = repo.ExistsByEmail(ctx, "e@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("update sets and clears the session", func(t *testing.T) {
		repo := newRepo(t)
		u, err := repo.Create(ctx, newUser("s@example.com"))
		require.NoError(t, err)

		expiry := createdAt.Add(7 * 24 * time.Hour)
		require.NoError(t, repo.UpdateAuthFields(ctx, u.ID, models.AuthFields{RefreshToken: ptr("tok-1"), RefreshTokenExpiryTime: expiry}))

		got, err := repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RefreshToken)
		assert.Equal(t, "tok-1", *got.RefreshToken)
		assert.Equal(t, expiry, got.RefreshTokenExpiryTime)

		require.NoError(t, repo.UpdateAuthFields(ctx, u.ID, models.AuthFields{}))

		got, err = repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RefreshToken)
		assert.Equal(t, time.Time{}, got.RefreshTokenExpiryTime)
	})

	t.Run("swap compares the stored token", func(t *testing.T) {
		repo := newRepo(t)
		u, err := repo.Create(ctx, newUser("w@example.com"))
		require.NoError(t, err)

		next := models.AuthFields{RefreshToken: ptr("tok-2"), RefreshTokenExpiryTime: createdAt.Add(time.Hour)}
		assert.ErrorIs(t, repo.SwapAuthFields(ctx, u.ID, "tok-1", next), common.ErrVersionConflict, "no session yet")

		require.NoError(t, repo.UpdateAuthFields(ctx, u.ID, models.AuthFields{RefreshToken: ptr("tok-1"), RefreshTokenExpiryTime: createdAt}))
		assert.ErrorIs(t, repo.SwapAuthFields(ctx, u.ID, "stale", next), common.ErrVersionConflict)
		require.NoError(t, repo.SwapAuthFields(ctx, u.ID, "tok-1", next))

		got, err := repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RefreshToken)
		assert.Equal(t, "tok-2", *got.RefreshToken)
		assert.Equal(t, next.RefreshTokenExpiryTime, got.RefreshTokenExpiryTime)

		assert.ErrorIs(t, repo.SwapAuthFields(ctx, u.ID, "tok-1", next), common.ErrVersionConflict, "old token is spent")
	})

	t.Run("concurrent swaps with one token", func(t *testing.T) {
		repo := newRepo(t)
		u, err := repo.Create(ctx, newUser("race@example.com"))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateAuthFields(ctx, u.ID, models.AuthFields{RefreshToken: ptr("shared"), RefreshTokenExpiryTime: createdAt}))

		const workers = 8
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = repo.SwapAuthFields(ctx, u.ID, "shared", models.AuthFields{RefreshToken: ptr("next"), RefreshTokenExpiryTime: createdAt})
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, common.ErrVersionConflict)
		}
		assert.Equal(t, 1, wins)
	})
}
