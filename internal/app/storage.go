package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/hcbookstore/storefront/internal/storage"
	pgstore "github.com/hcbookstore/storefront/internal/storage/postgres"
	redisstore "github.com/hcbookstore/storefront/internal/storage/redis"
)

// openStorage connects the configured session store. The returned func
// releases its connections.
func openStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (storage.KV, func(), error) {
	switch cfg.Backend {
	case BackendRedis:
		client, err := redisstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		lg.Info("Session store ready", zap.String("backend", cfg.Backend))
		return redisstore.New(client, cfg.TTL), func() { _ = client.Close() }, nil

	case BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.PoolConfig{
			MaxConns:        cfg.Pool.MaxConns,
			MinConns:        cfg.Pool.MinConns,
			MaxConnIdleTime: cfg.Pool.MaxConnIdleTime,
			MaxConnLifetime: cfg.Pool.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := pgstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Session store ready", zap.String("backend", cfg.Backend))
		return pgstore.NewKV(pool, cfg.TTL), pool.Close, nil

	default:
		lg.Warn("Session state is kept in memory and lost on restart")
		return storage.NewMemory(), func() {}, nil
	}
}

// purgeExpired deletes expired rows of the Postgres store until ctx is done.
// Redis expires keys itself and the memory store never persists past the
// process.
func purgeExpired(ctx context.Context, lg *zap.Logger, kv *pgstore.KV, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := kv.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn("Purge expired session state failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Expired session state purged", zap.Int64("rows", n))
			}
		}
	}
}
