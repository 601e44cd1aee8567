// Package storage provides the durable key/value space that backs a browser
// session: the cart snapshot, the checkout draft and the auth token.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// KV is a minimal byte-oriented key/value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Namespace returns a KV that prefixes every key with "session:<id>:".
func Namespace(kv KV, id string) KV {
	return &namespaced{kv: kv, prefix: "session:" + id + ":"}
}

type namespaced struct {
	kv     KV
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Ping(ctx context.Context) error {
	return n.kv.Ping(ctx)
}
