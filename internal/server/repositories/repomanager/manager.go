// Package repomanager selects the user store named by the configuration,
// prepares its schema and owns the underlying connection.
package repomanager

import (
	"context"
	"fmt"

	"github.com/carmarket/marketauth/internal/server/config"
	"github.com/carmarket/marketauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}

// New opens the store for cfg.StorageDriver. Callers run migrations
// and must Close the manager.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := openPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepositoryManager(db)
	case config.StorageSQLite:
		db, err := openSQLite(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return NewSQLiteRepositoryManager(db)
	case config.StorageRedis:
		client, err := openRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedisRepositoryManager(client), nil
	case config.StorageMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
