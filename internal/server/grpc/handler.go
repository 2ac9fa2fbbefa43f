package grpc

import (
	"context"
	"errors"

	"github.com/carmarket/marketauth/internal/common"
	pb "github.com/carmarket/marketauth/internal/proto"
	"github.com/carmarket/marketauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterUserRequest) (*pb.RegisterUserResponse, error) {
	if err := pb.Validate(req); err != nil {
		return nil, toStatus(err)
	}

	user, err := s.users.Register(ctx, services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RegisterUserResponse{
		Id:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	if err := pb.Validate(req); err != nil {
		return nil, toStatus(err)
	}

	tokens, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RefreshTokenResponse, error) {
	if err := pb.Validate(req); err != nil {
		return nil, toStatus(err)
	}

	tokens, err := s.users.RefreshToken(ctx, req.UserId, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *pb.LogoutRequest) (*pb.LogoutResponse, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	if err := s.users.Logout(ctx, identity.UserID); err != nil {
		return nil, toStatus(err)
	}

	return &pb.LogoutResponse{Success: true}, nil
}

// toStatus maps service errors to gRPC codes. Anything unrecognized
// becomes a bare Internal so no detail leaks.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, "email already exists")
	case errors.Is(err, common.ErrInvalidRole):
		return status.Error(codes.InvalidArgument, "invalid role")
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
