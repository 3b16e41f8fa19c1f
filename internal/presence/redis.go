package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/emocall/config"
)

const peersTTL = 24 * time.Hour

// RedisStore keeps one set per room under room:<id>:peers.
type RedisStore struct {
	client *redis.Client
}

// Connect opens the Redis client and checks the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStore(client), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func peersKey(roomID string) string {
	return "room:" + roomID + ":peers"
}

func (s *RedisStore) Add(ctx context.Context, roomID, participant string) error {
	key := peersKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, participant)
		pipe.Expire(ctx, key, peersTTL)
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, roomID, participant string) error {
	return s.client.SRem(ctx, peersKey(roomID), participant).Err()
}

// Reset deletes every room set. Room state does not survive a restart, so
// sets written by a previous process are stale.
func (s *RedisStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, "room:*:peers", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
