package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore(50 * time.Millisecond)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "buy:bob:1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "buy:bob:1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Expired keys can be claimed again.
	time.Sleep(60 * time.Millisecond)
	ok, err = store.Reserve(ctx, "buy:bob:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryIdempotencyRelease(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "k"))

	ok, err = store.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
