package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

const scanBatch = 200

// ResultCache stores JSON encoded query results in Redis. A nil client turns
// every read into a miss and every write into a no-op.
type ResultCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewResultCache wraps a Redis client.
func NewResultCache(client redis.UniversalClient, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{client: client, logger: logger}
}

// Get unmarshals the cached value into dest or returns ErrCacheMiss.
func (c *ResultCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern unlinks every key matching pattern, scanning in batches.
func (c *ResultCache) DeleteByPattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis unlink %s: %w", pattern, err)
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	c.logger.Debug("query cache invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	return nil
}

// Close releases the underlying connection if present.
func (c *ResultCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
