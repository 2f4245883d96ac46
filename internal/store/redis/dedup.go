// Package redis provides a Redis-based implementation of store.DedupStore.
// Several listeners sharing one Redis see each other's processed ids.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"energy-queue/internal/config"
	"energy-queue/internal/metrics"
)

// Key prefix for processed message ids.
const prefixProcessed = "processed:"

// DedupStore implements store.DedupStore using Redis.
type DedupStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupStore creates a new Redis-backed dedup store.
func NewDedupStore(cfg *config.RedisConfig, ttl time.Duration) (*DedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewDedupStoreWithClient(client, ttl), nil
}

// NewDedupStoreWithClient wraps an existing client.
func NewDedupStoreWithClient(client *redis.Client, ttl time.Duration) *DedupStore {
	return &DedupStore{client: client, ttl: ttl}
}

// processedKey generates the Redis key for a message id.
func processedKey(id string) string {
	return prefixProcessed + id
}

// Seen reports whether id is still recorded.
func (s *DedupStore) Seen(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	n, err := s.client.Exists(ctx, processedKey(id)).Result()
	metrics.ObserveStorage("redis", "read", time.Since(start).Seconds(), err)

	if err != nil {
		return false, fmt.Errorf("failed to check processed id: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records id with the configured TTL.
func (s *DedupStore) MarkProcessed(ctx context.Context, id string) error {
	start := time.Now()
	err := s.client.Set(ctx, processedKey(id), 1, s.ttl).Err()
	metrics.ObserveStorage("redis", "write", time.Since(start).Seconds(), err)

	if err != nil {
		return fmt.Errorf("failed to mark id processed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *DedupStore) Close() error {
	return s.client.Close()
}
