package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	pb "github.com/carmarket/marketauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu      sync.Mutex
	session *Session
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token := s.accessToken()
	if token == "" || method == pb.AuthService_RefreshToken_FullMethodName {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	if _, rerr := s.Refresh(ctx); rerr != nil {
		return err
	}

	// tokens refreshed, retry with the new access token
	return invoker(withAccessToken(ctx, s.accessToken()), method, req, reply, cc, opts...)
}

func NewAuthClient(endpointURL string, timeout time.Duration) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) Register(ctx context.Context, name, email, password, role string) (*pb.RegisterUserResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := &pb.RegisterUserRequest{Name: name, Email: email, Password: password, Role: role}
	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Login replaces the current session on success.
func (s *GRPCClient) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Login(ctx, &pb.LoginRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, s.mapError(err)
	}
	return s.setSession(resp.AccessToken, resp.RefreshToken)
}

// Refresh rotates the current session's token pair.
func (s *GRPCClient) Refresh(ctx context.Context) (Session, error) {
	current, ok := s.Session()
	if !ok {
		return Session{}, ErrNoSession
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.RefreshToken(ctx, &pb.RefreshTokenRequest{
		UserId:       current.UserID,
		RefreshToken: current.RefreshToken,
	})
	if err != nil {
		return Session{}, s.mapError(err)
	}
	return s.setSession(resp.AccessToken, resp.RefreshToken)
}

// Logout ends the session on the server and forgets it locally.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if _, ok := s.Session(); !ok {
		return ErrNoSession
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.client.Logout(ctx, &pb.LogoutRequest{}); err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

func (s *GRPCClient) setSession(accessToken, refreshToken string) (Session, error) {
	session, err := newSession(accessToken, refreshToken)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()
	return session, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.AlreadyExists:
		return common.ErrDuplicateEmail
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, st.Message())
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Unauthenticated:
		switch st.Message() {
		case common.ErrInvalidCredentials.Error():
			return common.ErrInvalidCredentials
		case common.ErrTokenExpired.Error():
			return common.ErrTokenExpired
		case common.ErrInvalidToken.Error():
			return common.ErrInvalidToken
		}
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
