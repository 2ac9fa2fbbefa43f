// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, refresh-token rotation and
// logout on top of a users.Repository.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/cryptox"
	"github.com/carmarket/marketauth/internal/logging"
	"github.com/carmarket/marketauth/internal/server/auth"
	"github.com/carmarket/marketauth/internal/server/config"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/carmarket/marketauth/internal/server/repositories/users"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput is the raw registration request; Register normalizes it.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UserService provides authentication-related operations:
//   - Register: create users
//   - Login: verify credentials and mint tokens
//   - RefreshToken: rotate refresh tokens and mint new access tokens
//   - Logout: drop the stored refresh token
type UserService struct {
	repo                         users.Repository
	hasher                       *cryptox.PasswordHasher
	issuer                       *auth.Issuer
	logger                       logging.Logger
	refreshTokenValidityDuration time.Duration
	refreshTokenSize             int
	now                          func() time.Time
}

// NewUserService constructs a UserService using the user store and server config.
func NewUserService(repo users.Repository, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repo:                         repo,
		hasher:                       cryptox.NewPasswordHasher(cfg.Argon2Params()),
		issuer:                       auth.NewIssuer([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience, cfg.AccessTokenValidityDuration),
		logger:                       logger.With("module", "users"),
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		refreshTokenSize:             cfg.RefreshTokenSize,
		now:                          func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Verifier exposes the access token verifier for the transports.
func (s *UserService) Verifier() *auth.Issuer {
	return s.issuer
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	// a Caser is stateful, so one per call
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// Register creates a user with no active session.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	log := s.logger.With("email", email)

	log.Info(ctx, "register attempt")

	if name == "" || email == "" || in.Password == "" {
		log.Warn(ctx, "register rejected: missing fields")
		return nil, fmt.Errorf("%w: name, email and password are required", common.ErrInvalidInput)
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, s.persistenceError(ctx, log, "register", err)
	}
	if exists {
		log.Warn(ctx, "register rejected: email already registered")
		return nil, common.ErrDuplicateEmail
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		log.Warn(ctx, "register rejected: invalid role", "role", in.Role)
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		log.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrInternal
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, s.persistenceError(ctx, log, "register", err)
	}

	log.Info(ctx, "user registered", "user_id", created.ID, "role", created.Role.String())
	return created, nil
}

// Login verifies the password and starts a new session, replacing any
// previous one. Unknown emails and wrong passwords fail the same way.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)
	log := s.logger.With("email", email)

	log.Info(ctx, "login attempt")

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn(ctx, "login failed")
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.persistenceError(ctx, log, "login", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		log.Warn(ctx, "login failed")
		return nil, common.ErrInvalidCredentials
	}

	pair, fields, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAuthFields(ctx, user.ID, fields); err != nil {
		return nil, s.persistenceError(ctx, log, "login", err)
	}

	log.Info(ctx, "login succeeded", "user_id", user.ID)
	return pair, nil
}

// RefreshToken rotates the session: the presented token must match the
// stored one and be unexpired, and it is unusable afterwards.
func (s *UserService) RefreshToken(ctx context.Context, userID int64, refreshToken string) (*TokenPair, error) {
	log := s.logger.With("user_id", userID)

	log.Info(ctx, "refresh attempt")

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn(ctx, "refresh rejected: unknown user")
			return nil, common.ErrInvalidToken
		}
		return nil, s.persistenceError(ctx, log, "refresh", err)
	}

	if !s.checkRefreshToken(user, refreshToken) {
		log.Warn(ctx, "refresh rejected: invalid or expired token")
		return nil, common.ErrInvalidToken
	}

	pair, fields, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SwapAuthFields(ctx, user.ID, refreshToken, fields); err != nil {
		if errors.Is(err, common.ErrVersionConflict) || errors.Is(err, common.ErrNotFound) {
			log.Warn(ctx, "refresh rejected: token rotated concurrently")
			return nil, common.ErrInvalidToken
		}
		return nil, s.persistenceError(ctx, log, "refresh", err)
	}

	log.Info(ctx, "refresh succeeded")
	return pair, nil
}

// Logout clears the session of the user named by a verified access token.
// Logging out without a session succeeds.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	log := s.logger.With("user_id", userID)

	log.Info(ctx, "logout attempt")

	err := s.repo.UpdateAuthFields(ctx, userID, models.AuthFields{RefreshToken: nil, RefreshTokenExpiryTime: time.Time{}})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn(ctx, "logout rejected: unknown user")
			return common.ErrNotFound
		}
		return s.persistenceError(ctx, log, "logout", err)
	}

	log.Info(ctx, "logout succeeded")
	return nil
}

// --- helpers below ---

func (s *UserService) checkRefreshToken(user *models.User, presented string) bool {
	if user.RefreshToken == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		return false
	}
	return user.HasActiveSession(s.now())
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User) (*TokenPair, models.AuthFields, error) {
	access, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.Error(ctx, "access token signing failed", "error", err)
		return nil, models.AuthFields{}, common.ErrInternal
	}

	refresh, err := cryptox.GenerateURLToken(s.refreshTokenSize)
	if err != nil {
		s.logger.Error(ctx, "refresh token generation failed", "error", err)
		return nil, models.AuthFields{}, common.ErrInternal
	}

	fields := models.AuthFields{
		RefreshToken:           &refresh,
		RefreshTokenExpiryTime: s.now().Add(s.refreshTokenValidityDuration),
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, fields, nil
}

func (s *UserService) persistenceError(ctx context.Context, log logging.Logger, op string, err error) error {
	log.Error(ctx, op+" failed: store error", "error", err)
	return fmt.Errorf("%w: %v", common.ErrPersistence, err)
}
