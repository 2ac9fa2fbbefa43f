package repomanager

import (
	"context"
	"fmt"
	"time"

	"github.com/carmarket/marketauth/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

// RedisRepositoryManager has no schema; RunMigrations only checks the
// connection.
type RedisRepositoryManager struct {
	client *redis.Client
}

func NewRedisRepositoryManager(client *redis.Client) *RedisRepositoryManager {
	return &RedisRepositoryManager{client: client}
}

func (m *RedisRepositoryManager) Users() users.Repository {
	return users.NewRedisRepository(m.client)
}

func (m *RedisRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisRepositoryManager) Close() error {
	return m.client.Close()
}

func openRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
