package database

import (
	"context"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// QueryRaw runs query with positional args and returns each row as a column
// map. Text-like values are returned as strings.
func QueryRaw(ctx context.Context, q Querier, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.FromDriver(err, "$queryRaw")
	}
	defer rows.Close()

	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, appErrors.FromDriver(err, "$queryRaw")
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.FromDriver(err, "$queryRaw")
	}
	return result, nil
}

// ExecuteRaw runs a statement and returns the number of affected rows.
func ExecuteRaw(ctx context.Context, q Querier, query string, args ...interface{}) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, appErrors.FromDriver(err, "$executeRaw")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, appErrors.FromDriver(err, "$executeRaw")
	}
	return affected, nil
}
