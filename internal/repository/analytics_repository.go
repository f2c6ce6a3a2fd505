package repository

import (
	"context"
	"time"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// DatabaseMetricRepository stores query telemetry samples.
type DatabaseMetricRepository struct {
	*Table[models.DatabaseMetric]
}

// NewDatabaseMetricRepository constructs the repository.
func NewDatabaseMetricRepository(e *engine) *DatabaseMetricRepository {
	return &DatabaseMetricRepository{Table: newTable[models.DatabaseMetric](e, ModelDatabaseMetric)}
}

// Record appends one sample. The timestamp defaults to the store clock.
func (r *DatabaseMetricRepository) Record(ctx context.Context, queryTime time.Duration, rows int) error {
	_, err := r.CreateMany(ctx, query.CreateManyArgs{Data: []query.Data{{
		"query_time": int(queryTime / time.Millisecond),
		"row_count":  rows,
	}}})
	return err
}

// PurgeBefore deletes samples older than cutoff.
func (r *DatabaseMetricRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DeleteMany(ctx, query.DeleteManyArgs{Where: query.Where{"timestamp": query.Lt(cutoff)}})
	return res.Count, err
}

// Summary aggregates the samples taken since the given time.
func (r *DatabaseMetricRepository) Summary(ctx context.Context, since time.Time) (query.AggregateResult, error) {
	return r.Aggregate(ctx, query.AggregateArgs{
		Where: query.Where{"timestamp": query.Gte(since)},
		AggregateSelect: query.AggregateSelect{
			Count: []string{query.AllRows},
			Avg:   []string{"query_time"},
			Max:   []string{"query_time", "row_count"},
			Sum:   []string{"row_count"},
		},
	})
}
