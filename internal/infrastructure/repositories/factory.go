package repositories

import (
	"context"
	"time"

	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/repositories/memory"
	pgrepo "vlsnet/internal/infrastructure/repositories/postgres"
	redisrepo "vlsnet/internal/infrastructure/repositories/redis"
	"vlsnet/pkg/config"
	"vlsnet/pkg/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory picks Postgres/Redis backed stores when configured and
// reachable, falling back to in-memory implementations otherwise.
type RepositoryFactory struct {
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	memKV       *memory.KeyValueStore
	logger      *zap.SugaredLogger

	identities ports.IdentityRepository
	streams    ports.StreamRepository
	messages   ports.ChatMessageRepository
	moderation ports.ModerationRepository
	kv         ports.KeyValueStore
}

func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	f := &RepositoryFactory{logger: logger}
	retryCfg := retry.DefaultConfig()

	if cfg.Postgres.Enabled {
		pool, err := pgrepo.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, retryCfg, logger)
		if err == nil {
			err = pgrepo.Migrate(ctx, pool)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			logger.Warnw("failed to initialise Postgres, falling back to memory repositories", "error", err)
		} else {
			f.pgPool = pool
		}
	}

	if f.pgPool != nil {
		f.identities = pgrepo.NewIdentityRepository(f.pgPool)
		f.streams = pgrepo.NewStreamRepository(f.pgPool)
		f.messages = newGuardedChatMessageRepository(pgrepo.NewChatMessageRepository(f.pgPool), logger)
		f.moderation = newGuardedModerationRepository(pgrepo.NewModerationRepository(f.pgPool), logger)
		logger.Info("using Postgres repositories")
	} else {
		f.identities = memory.NewMemoryIdentityRepository()
		f.streams = memory.NewMemoryStreamRepository()
		f.messages = memory.NewMemoryChatMessageRepository()
		f.moderation = memory.NewMemoryModerationRepository()
		logger.Info("using memory repositories")
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, retryCfg, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory key-value store", "error", err)
		} else {
			f.redisClient = client
		}
	}

	if f.redisClient != nil {
		f.kv = redisrepo.NewKeyValueStore(f.redisClient)
		logger.Info("using Redis key-value store")
	} else {
		f.memKV = memory.NewKeyValueStore()
		f.memKV.StartSweeper(time.Minute)
		f.kv = f.memKV
		logger.Info("using memory key-value store")
	}

	return f
}

func (f *RepositoryFactory) Identities() ports.IdentityRepository      { return f.identities }
func (f *RepositoryFactory) Streams() ports.StreamRepository           { return f.streams }
func (f *RepositoryFactory) ChatMessages() ports.ChatMessageRepository { return f.messages }
func (f *RepositoryFactory) Moderation() ports.ModerationRepository    { return f.moderation }
func (f *RepositoryFactory) KeyValue() ports.KeyValueStore             { return f.kv }

// UsingPostgres and UsingRedis report which backends survived startup.
func (f *RepositoryFactory) UsingPostgres() bool { return f.pgPool != nil }
func (f *RepositoryFactory) UsingRedis() bool    { return f.redisClient != nil }

func (f *RepositoryFactory) Close() error {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.memKV != nil {
		f.memKV.Stop()
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck pings whichever external backends are in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.pgPool != nil {
		if err := f.pgPool.Ping(ctx); err != nil {
			return err
		}
	}
	return f.kv.Ping(ctx)
}
