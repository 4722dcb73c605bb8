package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderboardkit/engine"
)

// newTestClient spins up a miniredis server and returns it with a connected client.
func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStore_SaveLoadDelete(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.Load(ctx, "device_id")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, store.Save(ctx, "device_id", "guid-1"))
	assert.True(t, mr.Exists("lbk:device:device_id"))

	got, err := store.Load(ctx, "device_id")
	require.NoError(t, err)
	assert.Equal(t, "guid-1", got)

	require.NoError(t, store.Save(ctx, "device_id", "guid-2"))
	got, err = store.Load(ctx, "device_id")
	require.NoError(t, err)
	assert.Equal(t, "guid-2", got)

	require.NoError(t, store.Delete(ctx, "device_id"))
	require.NoError(t, store.Delete(ctx, "device_id"))
	_, err = store.Load(ctx, "device_id")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestStore_TTL(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewWithClient(client)
	store.ttl = time.Hour
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "device_id", "guid-1"))
	assert.Equal(t, time.Hour, mr.TTL("lbk:device:device_id"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "device_id")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestStore_CorruptRecord(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewWithClient(client)
	require.NoError(t, mr.Set("lbk:device:device_id", "not-json"))

	_, err := store.Load(context.Background(), "device_id")
	assert.Error(t, err)
}

func TestNew_ConfigAndHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.KeyPrefix = "custom:"

	store, err := New(cfg)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
	require.NoError(t, store.Save(context.Background(), "id", "v"))
	assert.True(t, mr.Exists("custom:id"))
}

func TestNew_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	_, err := New(cfg)
	assert.Error(t, err)
}
