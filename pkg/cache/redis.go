// Package cache holds the Redis-backed query result cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-presence-api/pkg/config"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

const dialTimeout = 5 * time.Second

// NewRedis connects to Redis and verifies the server answers a ping within
// the dial timeout.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrConnection.Code, appErrors.ErrConnection.Status, "redis is not reachable")
	}
	return client, nil
}
