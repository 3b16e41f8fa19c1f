package presence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/emocall/config"
)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreAddRemove(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "abcde", "p1"))
	require.NoError(t, store.Add(ctx, "abcde", "p2"))

	members, err := mr.Members("room:abcde:peers")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, members)
	assert.Equal(t, peersTTL, mr.TTL("room:abcde:peers"))

	require.NoError(t, store.Remove(ctx, "abcde", "p1"))
	require.NoError(t, store.Remove(ctx, "abcde", "p2"))
	assert.False(t, mr.Exists("room:abcde:peers"))
}

func TestRedisStoreReset(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "one", "p1"))
	require.NoError(t, store.Add(ctx, "two", "p2"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, store.Reset(ctx))

	assert.False(t, mr.Exists("room:one:peers"))
	assert.False(t, mr.Exists("room:two:peers"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Connect(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})

	assert.Error(t, err)
}

func TestMirrorAppliesUpdatesInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client)

	m := NewMirror(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.ParticipantJoined("abcde", "p1", 1)
	m.ParticipantJoined("abcde", "p2", 2)
	m.ParticipantLeft("abcde", "p1", 1)

	require.Eventually(t, func() bool {
		members, err := mr.Members("room:abcde:peers")
		return err == nil && len(members) == 1 && members[0] == "p2"
	}, 2*time.Second, 10*time.Millisecond)
}
