package client

import (
	"context"

	pb "github.com/carmarket/marketauth/internal/proto"
)

type Client interface {
	Close() error
	Register(ctx context.Context, name, email, password, role string) (*pb.RegisterUserResponse, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context) (Session, error)
	Logout(ctx context.Context) error
	Session() (Session, bool)
}
