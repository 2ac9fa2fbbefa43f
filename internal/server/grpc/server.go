// Package grpc exposes UserService as carmarket.auth.v1.AuthService.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/carmarket/marketauth/internal/logging"
	pb "github.com/carmarket/marketauth/internal/proto"
	"github.com/carmarket/marketauth/internal/server/auth"
	"github.com/carmarket/marketauth/internal/server/models"
	"github.com/carmarket/marketauth/internal/server/services"
	"google.golang.org/grpc"
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

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address  string
	users    UserService
	verifier TokenVerifier
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us UserService, v TokenVerifier) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		users:    us,
		verifier: v,
	}
}

// newServer builds the grpc.Server with the interceptor chain: recovery
// first, then request logging, then the access token check.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.recoveryInterceptor,
		s.loggingInterceptor,
		s.accessTokenInterceptor,
	))
	pb.RegisterAuthServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections; ErrServerStopped means ctx
	// was done before Serve started
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
