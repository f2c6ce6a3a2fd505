package service

import (
	"context"
	"time"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// Observers fans one statement observation out to several observers.
type Observers []repository.QueryObserver

func (o Observers) ObserveQuery(model, operation string, duration time.Duration, rows int, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveQuery(model, operation, duration, rows, err)
		}
	}
}

type cacheRecorder interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// InstrumentedCache records hit and miss counts around a result cache.
type InstrumentedCache struct {
	next    repository.ResultCache
	metrics cacheRecorder
}

// NewInstrumentedCache wraps next. A nil recorder disables recording.
func NewInstrumentedCache(next repository.ResultCache, metrics cacheRecorder) *InstrumentedCache {
	return &InstrumentedCache{next: next, metrics: metrics}
}

func (c *InstrumentedCache) Get(ctx context.Context, key string, dest interface{}) error {
	start := time.Now()
	err := c.next.Get(ctx, key, dest)
	if c.metrics != nil && (err == nil || appErrors.IsCacheMiss(err)) {
		c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	}
	return err
}

func (c *InstrumentedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.next.Set(ctx, key, value, ttl)
}

func (c *InstrumentedCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return c.next.DeleteByPattern(ctx, pattern)
}
