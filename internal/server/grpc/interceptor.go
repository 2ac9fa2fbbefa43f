package grpc

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	pb "github.com/carmarket/marketauth/internal/proto"
	"github.com/carmarket/marketauth/internal/server/auth"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// protectedMethods need a verified access token.
var protectedMethods = map[string]struct{}{
	pb.AuthService_Logout_FullMethodName: {},
}

// IdentityFromContext returns the identity stored by the access token
// interceptor.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if _, ok := protectedMethods[info.FullMethod]; ok {

		accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		identity, err := s.verifier.Verify(accessToken)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, "token expired")
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, identityKey, identity)

	}

	return handler(ctx, req)
}

// loggingInterceptor tags the call with a request id, taken from the
// caller's metadata or generated, and echoes it in the response header.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requestID := firstMetadata(ctx, common.RequestIDHeaderName)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, requestID))

	log := s.logger.With("request_id", requestID, "method", info.FullMethod)
	start := time.Now()

	resp, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.Internal || code == codes.Unknown {
		log.Error(ctx, "request failed", "code", code.String(), "duration", time.Since(start))
	} else {
		log.Info(ctx, "request handled", "code", code.String(), "duration", time.Since(start))
	}
	return resp, err
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
