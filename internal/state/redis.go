package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisLedgerKey = "lead-refinery:processed_files"

// RedisStore keeps the ledger in a Redis hash, for deployments where
// several workers share state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.client.HGet(ctx, redisLedgerKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state from redis: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding state record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding state record: %w", err)
	}
	if err := s.client.HSet(ctx, redisLedgerKey, key, data).Err(); err != nil {
		return fmt.Errorf("writing state to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, redisLedgerKey).Err(); err != nil {
		return fmt.Errorf("clearing state in redis: %w", err)
	}
	return nil
}
