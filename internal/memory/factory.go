package memory

import (
	"context"
	"strings"
	"time"
)

// NewStore creates a postgres-backed store when databaseURL is set, a
// redis-backed store when redisURL is set, otherwise an in-memory one.
func NewStore(ctx context.Context, databaseURL, redisURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(redisURL) != "" {
		return NewRedisStoreFromURL(ctx, redisURL, 24*time.Hour)
	}
	return NewInMemoryStore(), nil
}

// Mode names the backend of s for health output.
func Mode(s Store) string {
	switch s.(type) {
	case *PostgresStore:
		return "postgres"
	case *RedisStore:
		return "redis"
	case *InMemoryStore:
		return "in-memory"
	case nil:
		return "disabled"
	default:
		return "custom"
	}
}
