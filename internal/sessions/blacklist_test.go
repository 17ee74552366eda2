package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	require.NoError(t, bl.Revoke(ctx, "access-token-1", 2*time.Second))

	ok, err := bl.IsRevoked(ctx, "access-token-1")
	require.NoError(t, err)
	require.True(t, ok)

	// advance past TTL
	m.FastForward(3 * time.Second)

	ok, err = bl.IsRevoked(ctx, "access-token-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisBlacklist_NoClient_Noop(t *testing.T) {
	bl := NewRedisBlacklist(nil)
	ctx := context.Background()
	require.NoError(t, bl.Revoke(ctx, "t", time.Second))
	ok, err := bl.IsRevoked(ctx, "t")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryBlacklistExpiry(t *testing.T) {
	bl := NewMemoryBlacklist()
	now := time.Now()
	bl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, bl.Revoke(ctx, "t", time.Minute))
	ok, _ := bl.IsRevoked(ctx, "t")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = bl.IsRevoked(ctx, "t")
	require.False(t, ok)
}
