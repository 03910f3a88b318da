// Package rediscache implements the record cache on Redis/Valkey. The cache
// absorbs rapid successive updates to the same in-flight record within its
// TTL window, sparing the columnar store a point lookup per event.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/config"
	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// Cache implements repository.RecordCache
type Cache struct {
	client *redis.Client
	log    *zap.Logger
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg config.Redis, log *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Redis connection established",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port))

	return &Cache{client: client, log: log}, nil
}

// Key builds the table-scoped cache key for one record.
func Key(table domain.Table, id, projectID string) string {
	return fmt.Sprintf("%s:%s-%s", table, id, projectID)
}

// GetMany returns cached JSON per id, nil for misses, in id order
func (c *Cache) GetMany(ctx context.Context, table domain.Table, projectID string, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(table, id, projectID)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %d keys: %w", len(keys), err)
	}

	results := make([][]byte, len(ids))
	for i, value := range values {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			results[i] = []byte(s)
		}
	}
	return results, nil
}

// SetMany writes all entries with the given TTL in one pipeline
func (c *Cache) SetMany(ctx context.Context, table domain.Table, projectID string, entries []repository.CacheEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, entry := range entries {
		pipe.Set(ctx, Key(table, entry.ID, projectID), entry.Value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to pipeline %d cache writes: %w", len(entries), err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
