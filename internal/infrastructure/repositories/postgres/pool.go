package postgres

import (
	"context"
	"errors"
	"fmt"

	"vlsnet/pkg/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// Connect opens a pool and pings it, retrying while the database comes up.
func Connect(ctx context.Context, dsn string, maxConns int32, retryCfg retry.Config, logger *zap.SugaredLogger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	err = retry.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		if err := pool.Ping(ctx); err != nil {
			if logger != nil {
				logger.Warnw("postgres ping failed", "attempt", attempt, "error", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Postgres", "max_conns", poolCfg.MaxConns)
	}
	return pool, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
