package repository

import (
	"context"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// windowPlan resolves the cursor, ordering and paging of a count or
// aggregate. ok is false when the window is empty.
func (e *engine) windowPlan(ctx context.Context, m *query.Model, op string, where query.Where, orderBy []query.Order, cursor query.Where, skip int, take *int) (query.WindowPlan, bool, error) {
	if err := m.ValidateFindArgs(query.FindArgs{Where: where, OrderBy: orderBy, Cursor: cursor, Skip: skip, Take: take}); err != nil {
		return query.WindowPlan{}, false, err
	}
	if take != nil && *take == 0 {
		return query.WindowPlan{}, false, nil
	}
	w, orders, found, err := e.window(ctx, m, op, where, orderBy, cursor, take)
	if err != nil || !found {
		return query.WindowPlan{}, false, err
	}
	plan := query.WindowPlan{Where: w, OrderBy: orders, Offset: skip}
	if take != nil {
		plan.Limit = abs(*take)
	}
	return plan, true, nil
}

func (e *engine) count(ctx context.Context, m *query.Model, op string, args query.CountArgs) (int64, error) {
	plan, ok, err := e.windowPlan(ctx, m, op, args.Where, args.OrderBy, args.Cursor, args.Skip, args.Take)
	if err != nil || !ok {
		return 0, err
	}
	stmt, err := query.BuildCount(m, plan)
	if err != nil {
		return 0, err
	}
	return e.scalar(ctx, m, op, stmt)
}

// countFields counts non-null values per field; "_all" counts rows.
func (e *engine) countFields(ctx context.Context, m *query.Model, op string, args query.CountArgs) (map[string]int64, error) {
	sel := query.AggregateSelect{Count: args.Fields}
	if err := m.ValidateAggregateSelect(sel); err != nil {
		return nil, err
	}
	res, err := e.aggregateWindow(ctx, m, op, sel, args.Where, args.OrderBy, args.Cursor, args.Skip, args.Take)
	if err != nil {
		return nil, err
	}
	return res.Count, nil
}

func (e *engine) aggregate(ctx context.Context, m *query.Model, op string, args query.AggregateArgs) (query.AggregateResult, error) {
	if err := m.ValidateAggregateSelect(args.AggregateSelect); err != nil {
		return query.AggregateResult{}, err
	}
	return e.aggregateWindow(ctx, m, op, args.AggregateSelect, args.Where, args.OrderBy, args.Cursor, args.Skip, args.Take)
}

func (e *engine) aggregateWindow(ctx context.Context, m *query.Model, op string, sel query.AggregateSelect, where query.Where, orderBy []query.Order, cursor query.Where, skip int, take *int) (query.AggregateResult, error) {
	plan, ok, err := e.windowPlan(ctx, m, op, where, orderBy, cursor, skip, take)
	if err != nil {
		return query.AggregateResult{}, err
	}
	if !ok {
		return emptyAggregate(sel), nil
	}
	stmt, err := query.BuildAggregate(m, sel, plan)
	if err != nil {
		return query.AggregateResult{}, err
	}
	rows, err := e.queryMaps(ctx, m, op, stmt)
	if err != nil {
		return query.AggregateResult{}, err
	}
	if len(rows) == 0 {
		return emptyAggregate(sel), nil
	}
	return decodeAggregate(sel, rows[0]), nil
}

func (e *engine) groupBy(ctx context.Context, m *query.Model, op string, args query.GroupByArgs) ([]query.GroupRow, error) {
	if args.Skip < 0 {
		return nil, appErrors.Validation("skip on %s must not be negative", m.Name)
	}
	if args.Take != nil && *args.Take < 0 {
		return nil, appErrors.Validation("take on %s groupBy must not be negative", m.Name)
	}
	if err := m.ValidateAggregateSelect(args.AggregateSelect); err != nil {
		return nil, err
	}
	if args.Take != nil && *args.Take == 0 {
		return []query.GroupRow{}, nil
	}

	plan := query.GroupPlan{
		By:      args.By,
		Where:   args.Where,
		Having:  args.Having,
		OrderBy: args.OrderBy,
		Offset:  args.Skip,
		Select:  args.AggregateSelect,
	}
	if args.Take != nil {
		plan.Limit = *args.Take
	}
	stmt, err := query.BuildGroupBy(m, plan)
	if err != nil {
		return nil, err
	}
	rows, err := e.queryMaps(ctx, m, op, stmt)
	if err != nil {
		return nil, err
	}

	out := make([]query.GroupRow, 0, len(rows))
	for _, row := range rows {
		keys := make(map[string]interface{}, len(args.By))
		for _, col := range args.By {
			keys[col] = row[col]
		}
		out = append(out, query.GroupRow{Keys: keys, AggregateResult: decodeAggregate(args.AggregateSelect, row)})
	}
	return out, nil
}

// emptyAggregate is the result over no rows: zero counts and null values.
func emptyAggregate(sel query.AggregateSelect) query.AggregateResult {
	var res query.AggregateResult
	if len(sel.Count) > 0 {
		res.Count = make(map[string]int64, len(sel.Count))
		for _, f := range sel.Count {
			res.Count[f] = 0
		}
	}
	if len(sel.Avg) > 0 {
		res.Avg = make(map[string]*float64, len(sel.Avg))
		for _, f := range sel.Avg {
			res.Avg[f] = nil
		}
	}
	res.Sum = nullMap(sel.Sum)
	res.Min = nullMap(sel.Min)
	res.Max = nullMap(sel.Max)
	return res
}

func nullMap(fields []string) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		out[f] = nil
	}
	return out
}

// decodeAggregate reads the aliased aggregate columns of one result row.
func decodeAggregate(sel query.AggregateSelect, row map[string]interface{}) query.AggregateResult {
	res := emptyAggregate(sel)
	for alias, v := range row {
		fn, field, ok := query.ParseAggregateAlias(alias)
		if !ok {
			continue
		}
		switch fn {
		case query.AggCount:
			if n, ok := v.(int64); ok {
				res.Count[field] = n
			}
		case query.AggAvg:
			if f, ok := v.(float64); ok {
				res.Avg[field] = &f
			}
		case query.AggSum:
			res.Sum[field] = v
		case query.AggMin:
			res.Min[field] = v
		case query.AggMax:
			res.Max[field] = v
		}
	}
	return res
}
