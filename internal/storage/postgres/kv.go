// Package postgres implements storage.KV on a single PostgreSQL table.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hcbookstore/storefront/internal/storage"
)

const (
	getValueSQL = `SELECT value FROM session_kv
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	upsertValueSQL = `INSERT INTO session_kv (key, value, updated_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`

	deleteValueSQL = `DELETE FROM session_kv WHERE key = $1`

	purgeExpiredSQL = `DELETE FROM session_kv WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

var _ storage.KV = (*KV)(nil)

// KV implements storage.KV backed by PostgreSQL.
type KV struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewKV returns a KV that uses the given pool. A zero ttl stores rows
// without expiry.
func NewKV(pool *pgxpool.Pool, ttl time.Duration) *KV {
	return &KV{pool: pool, ttl: ttl, now: time.Now}
}

// Get returns the stored value, or storage.ErrNotFound for a missing or
// expired key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := k.pool.QueryRow(ctx, getValueSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return value, nil
}

// Set upserts the value and refreshes its expiry.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	var expiresAt *time.Time
	if k.ttl > 0 {
		t := k.now().Add(k.ttl)
		expiresAt = &t
	}
	if _, err := k.pool.Exec(ctx, upsertValueSQL, key, value, expiresAt); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.pool.Exec(ctx, deleteValueSQL, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.pool.Ping(ctx)
}

// PurgeExpired removes expired rows and reports how many were deleted.
func (k *KV) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := k.pool.Exec(ctx, purgeExpiredSQL)
	if err != nil {
		return 0, errors.Wrap(err, "purge expired")
	}
	return tag.RowsAffected(), nil
}
