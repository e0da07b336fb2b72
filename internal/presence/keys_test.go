package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeys(t *testing.T) {
	assert.Equal(t, "draw:room:abc:members", BuildRoomMembersKey("abc"))
	assert.Equal(t, "draw:conn:c-1:room", BuildConnRoomKey("c-1"))
}

func TestNewRedisPresence_DefaultTTL(t *testing.T) {
	p := NewRedisPresence(nil, 0)
	assert.Equal(t, DefaultTTL, p.ttl)
}

// TestRedisPresence_Integration 需要可用的 Redis，通过 REDIS_ADDR 指定
func TestRedisPresence_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	roomKey := "it-" + time.Now().Format("150405.000000")
	p := NewRedisPresence(client, time.Minute)

	require.NoError(t, p.Enter(ctx, roomKey, "c1"))
	require.NoError(t, p.Enter(ctx, roomKey, "c2"))

	members, err := client.SMembers(ctx, BuildRoomMembersKey(roomKey)).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, members)

	got, err := client.Get(ctx, BuildConnRoomKey("c1")).Result()
	require.NoError(t, err)
	assert.Equal(t, roomKey, got)

	require.NoError(t, p.Exit(ctx, roomKey, "c1", false))
	members, err = client.SMembers(ctx, BuildRoomMembersKey(roomKey)).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, members)

	require.NoError(t, p.Exit(ctx, roomKey, "c2", true))
	exists, err := client.Exists(ctx, BuildRoomMembersKey(roomKey), BuildConnRoomKey("c2")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
