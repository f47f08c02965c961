package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("orders")
	key := m.Key("get", "42")

	require.NoError(t, m.Set(ctx, key, `{"id":"42"}`, time.Minute))

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"42"}`, got)

	require.NoError(t, m.Delete(ctx, key))
	got, err = m.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryAcceptsBytes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("orders")

	require.NoError(t, m.Set(ctx, "k", []byte("payload"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

// The redis implementation rejects values it cannot serialise, so the
// in-memory one must too instead of stringifying them.
func TestMemoryRejectsUnserialisedValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("orders")

	err := m.Set(ctx, "k", struct{ ID string }{ID: "42"}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryExpiresEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("orders")

	require.NoError(t, m.Set(ctx, "k", "v", -time.Second))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
