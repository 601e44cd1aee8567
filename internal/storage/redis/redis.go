// Package redis implements storage.KV on top of Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hcbookstore/storefront/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV stores session values as plain Redis strings. Every write refreshes the
// key's TTL so abandoned sessions eventually disappear.
type KV struct {
	client *goredis.Client
	ttl    time.Duration
}

// New returns a KV using client. A zero ttl stores keys without expiry.
func New(client *goredis.Client, ttl time.Duration) *KV {
	return &KV{client: client, ttl: ttl}
}

// Dial parses a redis:// URL and returns a connected client.
func Dial(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := k.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return data, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, key, value, k.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %q", key)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}
