package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	t.Run("FirstReserveWins", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "buy:bob:1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, "buy:bob:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DistinctKeysAreIndependent", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "buy:bob:2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ReleaseAllowsRetry", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "buy:carol:1")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.Release(ctx, "buy:carol:1"))

		ok, err = store.Reserve(ctx, "buy:carol:1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("TTLExpires", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "buy:dave:1")
		require.NoError(t, err)
		require.True(t, ok)

		s.FastForward(time.Minute + time.Second)

		ok, err = store.Reserve(ctx, "buy:dave:1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilStore := NewRedisIdempotencyStore(nil, time.Minute)
		_, err := nilStore.Reserve(ctx, "x")
		assert.Error(t, err)
		assert.Error(t, nilStore.Release(ctx, "x"))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}
