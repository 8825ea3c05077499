package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMirrorFallsThroughToSharedBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	backend := NewRedisBackend(client, "infergate:test:")
	local := New(Config{MaxSize: 10, TTL: time.Hour})
	mirror := NewMirror(local, backend, time.Hour)

	ctx := context.Background()
	require.NoError(t, mirror.Store(ctx, "k1", "shared content", "openai", "gpt", 80))

	// not present locally yet
	entry, ok := mirror.Fetch(ctx, "k1")
	require.True(t, ok)
	require.Equal(t, "shared content", entry.Content)
	require.Equal(t, 80, entry.Quality)
}

func TestMirrorWithoutBackendIsLocalOnly(t *testing.T) {
	local := New(Config{MaxSize: 10, TTL: time.Hour})
	mirror := NewMirror(local, nil, time.Hour)

	ctx := context.Background()
	require.NoError(t, mirror.Store(ctx, "k1", "x", "p", "m", 10))
	_, ok := mirror.Fetch(ctx, "k1")
	require.False(t, ok)
}
