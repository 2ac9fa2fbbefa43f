// Package httpapi serves the auth operations as JSON over HTTP under
// /api/auth, next to the gRPC service.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/logging"
	pb "github.com/carmarket/marketauth/internal/proto"
	"github.com/carmarket/marketauth/internal/server/auth"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/carmarket/marketauth/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// UserService is the part of services.UserService the handlers call.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, userID int64, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID int64) error
}

// TokenVerifier checks access tokens; *auth.Issuer implements it.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Handler wires HTTP endpoints for the auth flows.
type Handler struct {
	users    UserService
	verifier TokenVerifier
	logger   logging.Logger
}

func NewHandler(us UserService, v TokenVerifier, l logging.Logger) *Handler {
	return &Handler{users: us, verifier: v, logger: l}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refreshToken)
		r.With(h.requireBearer).Post("/logout", h.logout)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req pb.RegisterUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	JSON(w, http.StatusOK, pb.RegisterUserResponse{
		Id:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req pb.LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	tokens, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(w, err)
		return
	}

	JSON(w, http.StatusOK, pb.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req pb.RefreshTokenRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	tokens, err := h.users.RefreshToken(r.Context(), req.UserId, req.RefreshToken)
	if err != nil {
		RespondError(w, err)
		return
	}

	JSON(w, http.StatusOK, pb.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		RespondError(w, common.ErrInvalidToken)
		return
	}

	if err := h.users.Logout(r.Context(), identity.UserID); err != nil {
		RespondError(w, err)
		return
	}

	JSON(w, http.StatusOK, pb.LogoutResponse{Success: true})
}

func decodeAndValidate(r *http.Request, msg any) error {
	if err := DecodeJSON(r, msg); err != nil {
		return err
	}
	return pb.Validate(msg)
}

type ctxKey string

const identityKey ctxKey = "identity"

func identityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

// requireBearer verifies "Authorization: Bearer <token>" and stores the
// identity in the request context.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token")
			return
		}

		identity, err := h.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			RespondError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}
