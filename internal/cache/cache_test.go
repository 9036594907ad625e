package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/logging"
)

func TestMemoryPutGet(t *testing.T) {
	c, err := NewMemory(8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryExpiry(t *testing.T) {
	c, err := NewMemory(8)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Hour))

	now = now.Add(2 * time.Hour)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEvictsOldest(t *testing.T) {
	c, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Put(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Put(ctx, "c", []byte("3"), time.Minute))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPutGetWithTTL(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, "redis://"+server.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Hour))

	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	server.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMissingKey(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, "redis://"+server.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFallsBackToMemory(t *testing.T) {
	c, err := New(context.Background(), "redis://127.0.0.1:1", logging.Nop())
	require.NoError(t, err)

	_, isMemory := c.(*Memory)
	assert.True(t, isMemory)
}

func TestNewPrefersRedis(t *testing.T) {
	server := miniredis.RunT(t)

	c, err := New(context.Background(), "redis://"+server.Addr(), logging.Nop())
	require.NoError(t, err)

	_, isRedis := c.(*Redis)
	assert.True(t, isRedis)
}
