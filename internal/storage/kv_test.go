package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"), "delete must be idempotent")
	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNamespace_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	a := Namespace(kv, "a")
	b := Namespace(kv, "b")

	require.NoError(t, a.Set(ctx, "cart", []byte("A")))
	require.NoError(t, b.Set(ctx, "cart", []byte("B")))

	got, err := a.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got)

	raw, err := kv.Get(ctx, "session:b:cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), raw)
}
