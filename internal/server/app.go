// Package server wires the auth service together: configuration, storage,
// the user service and the gRPC and HTTP transports.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/carmarket/marketauth/internal/logging"
	"github.com/carmarket/marketauth/internal/server/config"
	"github.com/carmarket/marketauth/internal/server/httpapi"
	"github.com/carmarket/marketauth/internal/server/repositories/repomanager"
	"github.com/carmarket/marketauth/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/carmarket/marketauth/internal/server/grpc"
)

// runner is a transport that serves until ctx is done.
type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager repomanager.RepositoryManager
	runners []runner
}

// NewApp opens storage, applies migrations and builds the transports.
// The caller must Close the returned App.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, out)

	rm, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(rm.Users(), c, logger)

	runners := []runner{gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, us.Verifier())}
	if c.EndpointAddrHTTP != "" {
		runners = append(runners, httpapi.NewServer(c.EndpointAddrHTTP, us, us.Verifier(), logger))
	}

	return &App{config: c, logger: logger, manager: rm, runners: runners}, nil
}

// Run serves every transport until ctx is cancelled, a termination signal
// arrives or one transport fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...",
		"storage", app.config.StorageDriver,
		"grpc", app.config.EndpointAddrGRPC,
		"http", app.config.EndpointAddrHTTP,
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range app.runners {
		g.Go(func() error { return r.Run(ctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}

	app.logger.Info(context.Background(), "Server stopped")
	return nil
}

func (app *App) Close() error {
	return app.manager.Close()
}

// Main loads the configuration and runs the app until shutdown.
func Main(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return app.Run(ctx)
}
