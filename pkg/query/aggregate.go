package query

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// aggregateExpr renders an aggregate call and the field describing its result
// type, used to coerce having comparisons.
func aggregateExpr(m *Model, fn AggregateFunc, field string) (string, Field, error) {
	if fn == AggCount && field == AllRows {
		return "COUNT(*)", Field{Name: AllRows, Type: TypeBigInt}, nil
	}
	f, ok := m.Field(field)
	if !ok {
		return "", Field{}, appErrors.Validation("unknown aggregate field %q on %s", field, m.Name)
	}
	col := Quote(f.Name)
	switch fn {
	case AggCount:
		return "COUNT(" + col + ")", Field{Name: f.Name, Type: TypeBigInt}, nil
	case AggAvg:
		if !f.Type.Numeric() {
			return "", Field{}, appErrors.Validation("_avg requires a numeric field, %s.%s is %s", m.Name, f.Name, f.Type)
		}
		return "AVG(" + col + ")::float8", Field{Name: f.Name, Type: TypeFloat, Nullable: true}, nil
	case AggSum:
		if !f.Type.Numeric() {
			return "", Field{}, appErrors.Validation("_sum requires a numeric field, %s.%s is %s", m.Name, f.Name, f.Type)
		}
		if f.Type == TypeFloat {
			return "SUM(" + col + ")::float8", Field{Name: f.Name, Type: TypeFloat, Nullable: true}, nil
		}
		return "SUM(" + col + ")::bigint", Field{Name: f.Name, Type: TypeBigInt, Nullable: true}, nil
	case AggMin:
		return "MIN(" + col + ")", Field{Name: f.Name, Type: f.Type, Nullable: true}, nil
	case AggMax:
		return "MAX(" + col + ")", Field{Name: f.Name, Type: f.Type, Nullable: true}, nil
	}
	return "", Field{}, appErrors.Validation("unknown aggregate %q", fn)
}

// AggregateAlias is the result column name of an aggregate, e.g. "_avg.query_time".
func AggregateAlias(fn AggregateFunc, field string) string {
	return string(fn) + "." + field
}

// ParseAggregateAlias splits a result column produced by AggregateAlias.
func ParseAggregateAlias(alias string) (AggregateFunc, string, bool) {
	i := strings.IndexByte(alias, '.')
	if i <= 0 || !strings.HasPrefix(alias, "_") {
		return "", "", false
	}
	return AggregateFunc(alias[:i]), alias[i+1:], true
}

func (b *builder) aggregateColumns(m *Model, sel AggregateSelect) ([]string, error) {
	var cols []string
	add := func(fn AggregateFunc, fields []string) error {
		for _, field := range fields {
			expr, _, err := aggregateExpr(m, fn, field)
			if err != nil {
				return err
			}
			cols = append(cols, expr+" AS "+Quote(AggregateAlias(fn, field)))
		}
		return nil
	}
	for _, group := range []struct {
		fn     AggregateFunc
		fields []string
	}{{AggCount, sel.Count}, {AggAvg, sel.Avg}, {AggSum, sel.Sum}, {AggMin, sel.Min}, {AggMax, sel.Max}} {
		if err := add(group.fn, group.fields); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

// WindowPlan restricts the rows an aggregate sees.
type WindowPlan struct {
	Where   Where
	OrderBy []Order
	Limit   int
	Offset  int
}

func (w WindowPlan) windowed() bool {
	return w.Limit > 0 || w.Offset > 0
}

// source renders the FROM/WHERE part, wrapping a limited window in a subquery.
func (b *builder) source(m *Model, w WindowPlan) (string, error) {
	if !w.windowed() {
		cond, err := b.where(filterScope{model: m}, w.Where)
		if err != nil {
			return "", err
		}
		sql := " FROM " + m.quotedTable()
		if cond != "" {
			sql += " WHERE " + cond
		}
		return sql, nil
	}
	tail, err := b.filterTail(m, w.Where, w.OrderBy, w.Limit, w.Offset)
	if err != nil {
		return "", err
	}
	return " FROM (SELECT * FROM " + m.quotedTable() + tail + ") AS " + Quote("sub"), nil
}

// BuildAggregate compiles a single-row aggregate query.
func BuildAggregate(m *Model, sel AggregateSelect, w WindowPlan) (Statement, error) {
	if sel.empty() {
		return Statement{}, appErrors.Validation("aggregate on %s needs at least one of _count, _avg, _sum, _min, _max", m.Name)
	}
	b := &builder{}
	cols, err := b.aggregateColumns(m, sel)
	if err != nil {
		return Statement{}, err
	}
	from, err := b.source(m, w)
	if err != nil {
		return Statement{}, err
	}
	return b.statement("SELECT " + strings.Join(cols, ", ") + from), nil
}

// BuildCount compiles COUNT(*) over the window.
func BuildCount(m *Model, w WindowPlan) (Statement, error) {
	b := &builder{}
	from, err := b.source(m, w)
	if err != nil {
		return Statement{}, err
	}
	return b.statement("SELECT COUNT(*)" + from), nil
}

// GroupPlan is the shape of a groupBy.
type GroupPlan struct {
	By      []string
	Where   Where
	Having  Where
	OrderBy []Order
	Limit   int
	Offset  int
	Select  AggregateSelect
}

// BuildGroupBy compiles a groupBy. Plain having filters and plain orderings
// must reference columns listed in By.
func BuildGroupBy(m *Model, p GroupPlan) (Statement, error) {
	if len(p.By) == 0 {
		return Statement{}, appErrors.Validation("groupBy on %s needs at least one by field", m.Name)
	}
	by := make(map[string]bool, len(p.By))
	for _, f := range p.By {
		if _, ok := m.Field(f); !ok {
			return Statement{}, appErrors.Validation("unknown by field %q on %s", f, m.Name)
		}
		by[f] = true
	}
	if (p.Limit > 0 || p.Offset > 0) && len(p.OrderBy) == 0 {
		return Statement{}, appErrors.Validation("groupBy on %s with take or skip requires orderBy", m.Name)
	}

	b := &builder{}
	byCols, _ := quoteColumns(m, p.By)
	aggCols, err := b.aggregateColumns(m, p.Select)
	if err != nil {
		return Statement{}, err
	}
	cols := byCols
	if len(aggCols) > 0 {
		cols += ", " + strings.Join(aggCols, ", ")
	}

	sql := "SELECT " + cols + " FROM " + m.quotedTable()
	cond, err := b.where(filterScope{model: m}, p.Where)
	if err != nil {
		return Statement{}, err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	sql += " GROUP BY " + byCols

	scope := filterScope{model: m, having: true, by: by}
	having, err := b.where(scope, p.Having)
	if err != nil {
		return Statement{}, err
	}
	if having != "" {
		sql += " HAVING " + having
	}

	order, err := b.orderBy(scope, p.OrderBy)
	if err != nil {
		return Statement{}, err
	}
	sql += order
	if p.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", p.Limit)
	}
	if p.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", p.Offset)
	}
	return b.statement(sql), nil
}
