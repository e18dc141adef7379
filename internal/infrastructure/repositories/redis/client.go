package redis

import (
	"context"
	"fmt"
	"time"

	"vlsnet/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ClientConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects with pooling and pings until the server answers or
// the retry budget is spent.
func NewRedisClient(ctx context.Context, cfg ClientConfig, retryCfg retry.Config, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := retry.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			if logger != nil {
				logger.Warnw("redis ping failed", "address", cfg.Address, "attempt", attempt, "error", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", cfg.Address,
			"db", cfg.DB,
			"pool_size", cfg.PoolSize,
		)
	}
	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
