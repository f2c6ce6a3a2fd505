package repository

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// withTiebreak appends the identity columns so cursor positions are total.
func withTiebreak(m *query.Model, orders []query.Order) []query.Order {
	out := append([]query.Order(nil), orders...)
	for _, col := range identity(m) {
		present := false
		for _, o := range out {
			if o.Field == col {
				present = true
				break
			}
		}
		if !present {
			out = append(out, query.Asc(col))
		}
	}
	return out
}

// window resolves the ordering and cursor of a read. found is false when the
// cursor row does not exist, in which case the read is empty.
func (e *engine) window(ctx context.Context, m *query.Model, op string, where query.Where, orderBy []query.Order, cursor query.Where, take *int) (query.Where, []query.Order, bool, error) {
	orders := append([]query.Order(nil), orderBy...)
	backwards := take != nil && *take < 0
	if cursor != nil || backwards {
		orders = withTiebreak(m, orders)
	}
	if backwards {
		for i := range orders {
			orders[i] = orders[i].Flipped()
		}
	}
	if cursor == nil {
		return where, orders, true, nil
	}

	after, found, err := e.cursorFilter(ctx, m, op, cursor, orders)
	if err != nil || !found {
		return nil, nil, found, err
	}
	return query.And(where, after), orders, true, nil
}

// cursorFilter matches the cursor row and every row after it in orders.
func (e *engine) cursorFilter(ctx context.Context, m *query.Model, op string, cursor query.Where, orders []query.Order) (query.Where, bool, error) {
	cols := make([]string, 0, len(orders))
	for _, o := range orders {
		cols = append(cols, o.Field)
	}
	stmt, err := query.BuildSelect(m, query.SelectPlan{Columns: cols, Where: cursor, Limit: 1})
	if err != nil {
		return nil, false, err
	}
	rows, err := e.queryMaps(ctx, m, op+".cursor", stmt)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	pos := rows[0]

	terms := make([]query.Where, 0, len(orders)+1)
	for i, o := range orders {
		v := pos[o.Field]
		if v == nil {
			// nothing compares strictly greater or lower than NULL
			continue
		}
		term := query.Where{}
		for _, prev := range orders[:i] {
			term[prev.Field] = pos[prev.Field]
		}
		if o.Sort == query.SortDesc {
			term[o.Field] = query.Lt(v)
		} else {
			term[o.Field] = query.Gt(v)
		}
		terms = append(terms, term)
	}
	same := query.Where{}
	for _, o := range orders {
		same[o.Field] = pos[o.Field]
	}
	terms = append(terms, same)
	return query.Where{query.KeyOr: terms}, true, nil
}

// distinctRows keeps the first row of every distinct combination of fields.
func distinctRows(rows reflect.Value, fields []string) reflect.Value {
	out := reflect.MakeSlice(rows.Type(), 0, rows.Len())
	seen := make(map[string]bool, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		key := groupKey(columnValues(rows.Index(i), fields))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = reflect.Append(out, rows.Index(i))
	}
	return out
}

func page(rows reflect.Value, skip, limit int) reflect.Value {
	if skip > rows.Len() {
		skip = rows.Len()
	}
	rows = rows.Slice(skip, rows.Len())
	if limit > 0 && limit < rows.Len() {
		rows = rows.Slice(0, limit)
	}
	return rows
}

// findMany returns a []T of the model's row type.
func (e *engine) findMany(ctx context.Context, m *query.Model, op string, args query.FindArgs) (reflect.Value, query.Projection, error) {
	if err := m.ValidateFindArgs(args); err != nil {
		return reflect.Value{}, query.Projection{}, err
	}
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	if args.Take != nil && *args.Take == 0 {
		return newRows(m), proj, nil
	}

	where, orders, found, err := e.window(ctx, m, op, args.Where, args.OrderBy, args.Cursor, args.Take)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	if !found {
		return newRows(m), proj, nil
	}

	limit := 0
	if args.Take != nil {
		limit = abs(*args.Take)
	}
	distinct := len(args.Distinct) > 0
	plan := query.SelectPlan{Columns: readColumns(m, proj, args.Distinct...), Where: where, OrderBy: orders}
	if !distinct {
		plan.Limit, plan.Offset = limit, args.Skip
	}
	stmt, err := query.BuildSelect(m, plan)
	if err != nil {
		return reflect.Value{}, proj, err
	}

	// Reads inside a transaction may see uncommitted rows and bypass the cache.
	cacheable := args.Cache != nil && e.cache != nil && e.tx == nil && !proj.HasRelations()
	ptr := reflect.New(reflect.SliceOf(rowType(m)))
	var key string
	if cacheable {
		if distinct {
			key = cacheKey(m, stmt, args.Distinct, args.Skip, args.Take)
		} else {
			key = cacheKey(m, stmt)
		}
		if err := e.cache.Get(ctx, key, ptr.Interface()); err == nil {
			e.logger.Debug("query cache hit", zap.String("model", m.Name), zap.String("operation", op))
			return ptr.Elem(), proj, nil
		} else if !appErrors.IsCacheMiss(err) {
			e.logger.Warn("query cache read failed", zap.String("model", m.Name), zap.Error(err))
		}
	}

	if err := e.selectRows(ctx, m, op, ptr.Interface(), stmt); err != nil {
		return reflect.Value{}, proj, err
	}
	rows := ptr.Elem()
	if rows.IsNil() {
		rows = newRows(m)
	}
	if distinct {
		rows = page(distinctRows(rows, args.Distinct), args.Skip, limit)
	}
	if args.Take != nil && *args.Take < 0 {
		reverseRows(rows)
	}

	if proj.HasRelations() {
		if err := e.loadRelations(ctx, m, rows, proj.Relations); err != nil {
			return reflect.Value{}, proj, err
		}
	}
	if cacheable {
		ttl := args.Cache.TTL
		if ttl <= 0 {
			ttl = e.cacheTTL
		}
		if err := e.cache.Set(ctx, key, rows.Interface(), ttl); err != nil {
			e.logger.Warn("query cache write failed", zap.String("model", m.Name), zap.Error(err))
		}
	}
	return rows, proj, nil
}

// findUnique returns a *T, or an invalid value when nothing matches.
func (e *engine) findUnique(ctx context.Context, m *query.Model, op string, args query.UniqueArgs) (reflect.Value, query.Projection, error) {
	if _, err := m.UniqueSelectorOf(args.Where); err != nil {
		return reflect.Value{}, query.Projection{}, err
	}
	rows, proj, err := e.findMany(ctx, m, op, query.FindArgs{
		Where:   args.Where,
		Take:    query.Take(1),
		Select:  args.Select,
		Include: args.Include,
		Cache:   args.Cache,
	})
	if err != nil || rows.Len() == 0 {
		return reflect.Value{}, proj, err
	}
	return rows.Index(0).Addr(), proj, nil
}

// findFirst returns a *T, or an invalid value when nothing matches.
func (e *engine) findFirst(ctx context.Context, m *query.Model, op string, args query.FindArgs) (reflect.Value, query.Projection, error) {
	if args.Take == nil {
		args.Take = query.Take(1)
	}
	rows, proj, err := e.findMany(ctx, m, op, args)
	if err != nil || rows.Len() == 0 {
		return reflect.Value{}, proj, err
	}
	return rows.Index(0).Addr(), proj, nil
}

func notFound(m *query.Model, action string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "No "+m.Name+" record was found for "+action)
}
