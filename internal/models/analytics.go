package models

import "time"

// DatabaseMetric is an append-only sample of query telemetry.
type DatabaseMetric struct {
	ID        int       `db:"id" json:"id"`
	QueryTime int       `db:"query_time" json:"query_time"`
	RowCount  int       `db:"row_count" json:"row_count"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
