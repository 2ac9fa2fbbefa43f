package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("k", 64))

func newTestIssuer() *Issuer {
	return NewIssuer(testSecret, "CarMarketplace", "CarMarketplaceUsers", 2*time.Hour)
}

func testUser() *models.User {
	return &models.User{ID: 42, Name: "Ann", Email: "ann@example.com", Role: models.RoleSeller}
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer()
	tok, err := iss.Issue(testUser())
	require.NoError(t, err)

	id, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: 42, Name: "Ann", Role: models.RoleSeller}, id)
}

func TestIssue_ClaimsShape(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return fixed }

	tok, err := iss.Issue(testUser())
	require.NoError(t, err)

	claims := &Claims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)

	assert.Equal(t, "HS512", parsed.Method.Alg())
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "Ann", claims.Name)
	assert.Equal(t, "Seller", claims.Role)
	assert.Equal(t, "CarMarketplace", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"CarMarketplaceUsers"}, claims.Audience)
	assert.Equal(t, fixed.Add(2*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer()
	iss.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	tok, err := iss.Issue(testUser())
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Verify(tok)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newTestIssuer().Issue(testUser())
	require.NoError(t, err)

	other := NewIssuer([]byte("another-secret"), "CarMarketplace", "CarMarketplaceUsers", time.Hour)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	tok, err := newTestIssuer().Issue(testUser())
	require.NoError(t, err)

	_, err = NewIssuer(testSecret, "Elsewhere", "CarMarketplaceUsers", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = NewIssuer(testSecret, "CarMarketplace", "Admins", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "CarMarketplace",
			Audience:  jwt.ClaimStrings{"CarMarketplaceUsers"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "Admin",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = newTestIssuer().Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_BadSubjectOrRole(t *testing.T) {
	t.Parallel()

	sign := func(sub, role string) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				Issuer:    "CarMarketplace",
				Audience:  jwt.ClaimStrings{"CarMarketplaceUsers"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: role,
		}).SignedString(testSecret)
		require.NoError(t, err)
		return tok
	}

	_, err := newTestIssuer().Verify(sign("abc", "Admin"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = newTestIssuer().Verify(sign("7", "Dealer"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := newTestIssuer().Verify("not.a.jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
