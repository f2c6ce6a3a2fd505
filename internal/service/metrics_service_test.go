package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

func TestObserveQueryCountsErrorsByCode(t *testing.T) {
	m := NewMetricsService()

	m.ObserveQuery("presence", "create", 20*time.Millisecond, 1, nil)
	m.ObserveQuery("presence", "create", 10*time.Millisecond, 0, appErrors.ErrConflict)
	m.ObserveQuery("presence", "create", 10*time.Millisecond, 0, errors.New("driver"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.queryErrors.WithLabelValues("presence", "create", "CONFLICT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.queryErrors.WithLabelValues("presence", "create", "INTERNAL_ERROR")))

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.QueriesTotal)
	assert.Equal(t, uint64(2), snap.QueryErrorsTotal)
	assert.InDelta(t, 13.33, snap.AverageQueryDurationMs, 0.01)
}

type fakeCache struct {
	hit bool
	err error
}

func (f fakeCache) Get(context.Context, string, interface{}) error {
	if f.err != nil {
		return f.err
	}
	if f.hit {
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (fakeCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (fakeCache) DeleteByPattern(context.Context, string) error                 { return nil }

func TestInstrumentedCacheRecordsHitRatio(t *testing.T) {
	m := NewMetricsService()
	ctx := context.Background()
	var dest []int

	require.NoError(t, NewInstrumentedCache(fakeCache{hit: true}, m).Get(ctx, "k", &dest))
	assert.True(t, appErrors.IsCacheMiss(NewInstrumentedCache(fakeCache{}, m).Get(ctx, "k", &dest)))
	assert.Error(t, NewInstrumentedCache(fakeCache{err: errors.New("down")}, m).Get(ctx, "k", &dest))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, 0.5, snap.CacheHitRatio)
}

type countingObserver struct{ n int }

func (c *countingObserver) ObserveQuery(string, string, time.Duration, int, error) { c.n++ }

func TestObserversFanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	Observers{a, nil, b}.ObserveQuery("users", "findMany", time.Millisecond, 3, nil)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
