package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session's archive in a Redis list of JSON records.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	fillDefaults(&record, uuid.NewString)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := transcriptKey(record.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := s.client.LRange(ctx, transcriptKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session turns: %w", err)
	}

	out := make([]TurnRecord, 0, len(items))
	for _, item := range items {
		var r TurnRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("guesser:transcript:%s", sessionID)
}
