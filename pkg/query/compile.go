package query

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// Statement is compiled SQL with positional arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

type builder struct {
	args []interface{}
}

func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) statement(sql string) Statement {
	return Statement{SQL: sql, Args: b.args}
}

// filterScope carries what a filter may reference.
type filterScope struct {
	model *Model
	// having enables aggregate filters and restricts plain ones to by.
	having bool
	by     map[string]bool
}

// CompileWhere renders a filter for m. An empty result means no condition.
func CompileWhere(m *Model, w Where) (Statement, error) {
	b := &builder{}
	sql, err := b.where(filterScope{model: m}, w)
	if err != nil {
		return Statement{}, err
	}
	return b.statement(sql), nil
}

func (b *builder) where(s filterScope, w Where) (string, error) {
	if len(w) == 0 {
		return "", nil
	}
	m := s.model
	keys, err := filterKeys(m, w)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		raw := w[key]
		if _, st := resolve(raw); st == stateUndefined {
			continue
		}

		var cond string
		switch key {
		case KeyAnd:
			cond, err = b.logical(s, key, raw, " AND ")
		case KeyOr:
			cond, err = b.logical(s, key, raw, " OR ")
		case KeyNot:
			cond, err = b.negation(s, raw)
		default:
			if f, ok := m.Field(key); ok {
				cond, err = b.fieldFilter(s, f, raw)
			} else if rel, ok := m.Relation(key); ok {
				if s.having {
					return "", appErrors.Validation("relation %s cannot be used in having", key)
				}
				cond, err = b.relationFilter(m, rel, raw)
			} else if uk, ok := m.CompoundKey(key); ok {
				cond, err = b.compoundKey(s, uk, raw)
			}
		}
		if err != nil {
			return "", err
		}
		if cond != "" {
			parts = append(parts, cond)
		}
	}
	return strings.Join(parts, " AND "), nil
}

// filterKeys orders the keys of w deterministically: columns, relations,
// compound selectors, then AND, OR, NOT.
func filterKeys(m *Model, w Where) ([]string, error) {
	keys := make([]string, 0, len(w))
	for _, f := range m.Fields {
		if _, ok := w[f.Name]; ok {
			keys = append(keys, f.Name)
		}
	}
	for _, r := range m.Relations {
		if _, ok := w[r.Name]; ok {
			keys = append(keys, r.Name)
		}
	}
	for _, k := range m.UniqueKeys() {
		if !k.Compound() {
			continue
		}
		if _, ok := w[k.Name]; ok {
			keys = append(keys, k.Name)
		}
	}
	for _, k := range []string{KeyAnd, KeyOr, KeyNot} {
		if _, ok := w[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) != len(w) {
		for k := range w {
			if !contains(keys, k) {
				return nil, appErrors.Validation("unknown argument %q in %s filter", k, m.Name)
			}
		}
	}
	return keys, nil
}

func (b *builder) logical(s filterScope, key string, raw interface{}, sep string) (string, error) {
	filters, ok := asWheres(raw)
	if !ok {
		return "", appErrors.Validation("%s expects a filter or a list of filters", key)
	}
	if key == KeyOr && len(filters) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		cond, err := b.where(s, f)
		if err != nil {
			return "", err
		}
		if cond == "" {
			if key == KeyOr {
				// one branch without conditions makes the whole OR true
				return "", nil
			}
			continue
		}
		parts = append(parts, cond)
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *builder) negation(s filterScope, raw interface{}) (string, error) {
	filters, ok := asWheres(raw)
	if !ok {
		return "", appErrors.Validation("NOT expects a filter or a list of filters")
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		cond, err := b.where(s, f)
		if err != nil {
			return "", err
		}
		if cond == "" {
			return "FALSE", nil
		}
		parts = append(parts, "NOT ("+cond+")")
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) compoundKey(s filterScope, uk UniqueKey, raw interface{}) (string, error) {
	values, ok := asWhere(raw)
	if !ok {
		return "", appErrors.Validation("%s expects an object with %s", uk.Name, strings.Join(uk.Fields, ", "))
	}
	parts := make([]string, 0, len(uk.Fields))
	for _, col := range uk.Fields {
		v, present := values[col]
		if !present {
			return "", appErrors.Validation("%s is missing %s", uk.Name, col)
		}
		f, _ := s.model.Field(col)
		cond, err := b.fieldFilter(s, f, v)
		if err != nil {
			return "", err
		}
		if cond != "" {
			parts = append(parts, cond)
		}
	}
	if len(values) != len(uk.Fields) {
		return "", appErrors.Validation("%s only accepts %s", uk.Name, strings.Join(uk.Fields, ", "))
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) fieldFilter(s filterScope, f Field, raw interface{}) (string, error) {
	m := s.model
	if agg, ok := raw.(AggFilter); ok {
		if !s.having {
			return "", appErrors.Validation("aggregate filter on %s.%s is only valid in having", m.Name, f.Name)
		}
		return b.aggregateFilter(m, f, agg)
	}
	if s.having && !s.by[f.Name] {
		return "", appErrors.Validation("having filter on %q requires %q to be part of by", f.Name, f.Name)
	}

	col := Quote(f.Name)
	switch v := raw.(type) {
	case Op:
		return b.opFilter(m.Name, col, f, v)
	case Ops:
		parts := make([]string, 0, len(v))
		for _, op := range v {
			cond, err := b.opFilter(m.Name, col, f, op)
			if err != nil {
				return "", err
			}
			if cond != "" {
				parts = append(parts, cond)
			}
		}
		return strings.Join(parts, " AND "), nil
	case Where, map[string]interface{}, RelationFilter, NestedWrite:
		return "", appErrors.Validation("invalid filter for %s.%s", m.Name, f.Name)
	}
	return b.opFilter(m.Name, col, f, Equals(raw))
}

func (b *builder) aggregateFilter(m *Model, f Field, agg AggFilter) (string, error) {
	expr, resultField, err := aggregateExpr(m, agg.Func, f.Name)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(agg.Ops))
	for _, op := range agg.Ops {
		cond, err := b.opFilter(m.Name, expr, resultField, op)
		if err != nil {
			return "", err
		}
		if cond != "" {
			parts = append(parts, cond)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) opFilter(model, col string, f Field, op Op) (string, error) {
	if op.insensitive && f.Type != TypeString {
		return "", appErrors.Validation("insensitive mode is only valid on String fields, %s.%s is %s", model, f.Name, f.Type)
	}
	lhs := col
	wrap := func(p string) string { return p }
	if op.insensitive {
		lhs = "LOWER(" + col + ")"
		wrap = func(p string) string { return "LOWER(" + p + ")" }
	}

	switch op.kind {
	case opEquals, opNot:
		if op.kind == opNot {
			switch inner := op.value.(type) {
			case Op:
				cond, err := b.opFilter(model, col, f, inner)
				if err != nil || cond == "" {
					return cond, err
				}
				return "NOT (" + cond + ")", nil
			case Ops:
				parts := make([]string, 0, len(inner))
				for _, o := range inner {
					cond, err := b.opFilter(model, col, f, o)
					if err != nil {
						return "", err
					}
					if cond != "" {
						parts = append(parts, cond)
					}
				}
				if len(parts) == 0 {
					return "", nil
				}
				return "NOT (" + strings.Join(parts, " AND ") + ")", nil
			}
		}
		v, st := resolve(op.value)
		switch st {
		case stateUndefined:
			return "", nil
		case stateNull:
			if op.kind == opNot {
				return col + " IS NOT NULL", nil
			}
			return col + " IS NULL", nil
		}
		bound, err := Coerce(model, f, v)
		if err != nil {
			return "", err
		}
		if op.kind == opNot {
			return lhs + " <> " + wrap(b.bind(bound)), nil
		}
		return lhs + " = " + wrap(b.bind(bound)), nil

	case opIn, opNotIn:
		values, _ := op.value.([]interface{})
		placeholders := make([]string, 0, len(values))
		for _, item := range values {
			v, st := resolve(item)
			if st == stateUndefined {
				continue
			}
			if st == stateNull {
				return "", appErrors.Validation("%s on %s.%s cannot contain null", op, model, f.Name)
			}
			bound, err := Coerce(model, f, v)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, wrap(b.bind(bound)))
		}
		if len(placeholders) == 0 {
			if op.kind == opIn {
				return "FALSE", nil
			}
			return "", nil
		}
		keyword := " IN ("
		if op.kind == opNotIn {
			keyword = " NOT IN ("
		}
		return lhs + keyword + strings.Join(placeholders, ", ") + ")", nil

	case opLt, opLte, opGt, opGte:
		if f.Type == TypeBool {
			return "", appErrors.Validation("%s is not supported on Boolean field %s.%s", op, model, f.Name)
		}
		v, st := resolve(op.value)
		switch st {
		case stateUndefined:
			return "", nil
		case stateNull:
			return "", appErrors.Validation("%s on %s.%s cannot compare with null", op, model, f.Name)
		}
		bound, err := Coerce(model, f, v)
		if err != nil {
			return "", err
		}
		operator := map[opKind]string{opLt: " < ", opLte: " <= ", opGt: " > ", opGte: " >= "}[op.kind]
		return lhs + operator + wrap(b.bind(bound)), nil

	case opContains, opStartsWith, opEndsWith:
		if f.Type != TypeString {
			return "", appErrors.Validation("%s is only valid on String fields, %s.%s is %s", op, model, f.Name, f.Type)
		}
		s, _ := op.value.(string)
		pattern := escapeLike(s)
		switch op.kind {
		case opContains:
			pattern = "%" + pattern + "%"
		case opStartsWith:
			pattern += "%"
		case opEndsWith:
			pattern = "%" + pattern
		}
		like := " LIKE "
		if op.insensitive {
			like = " ILIKE "
		}
		return col + like + b.bind(pattern), nil
	}
	return "", appErrors.Validation("unsupported operator on %s.%s", model, f.Name)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (b *builder) relationFilter(m *Model, rel Relation, raw interface{}) (string, error) {
	var rf RelationFilter
	switch v := raw.(type) {
	case RelationFilter:
		rf = v
	case Where:
		rf = Is(v)
	case map[string]interface{}:
		rf = Is(Where(v))
	default:
		return "", appErrors.Validation("invalid relation filter for %s.%s", m.Name, rel.Name)
	}

	listKind := rf.kind == relSome || rf.kind == relEvery || rf.kind == relNone
	if listKind != (rel.Kind == ToMany) {
		return "", appErrors.Validation("%s is not a valid filter for relation %s.%s", relNames[rf.kind], m.Name, rel.Name)
	}

	target := m.Target(rel)
	inner, err := b.where(filterScope{model: target}, rf.where)
	if err != nil {
		return "", err
	}

	corr := make([]string, len(rel.Fields))
	for i := range rel.Fields {
		corr[i] = target.column(target.Table, rel.References[i]) + " = " + m.column(m.Table, rel.Fields[i])
	}
	base := "SELECT 1 FROM " + target.quotedTable() + " WHERE " + strings.Join(corr, " AND ")

	switch rf.kind {
	case relSome, relIs:
		if inner != "" {
			base += " AND (" + inner + ")"
		}
		return "EXISTS (" + base + ")", nil
	case relNone, relIsNot:
		if inner != "" {
			base += " AND (" + inner + ")"
		}
		return "NOT EXISTS (" + base + ")", nil
	default: // every
		if inner == "" {
			return "", nil
		}
		return "NOT EXISTS (" + base + " AND NOT (" + inner + "))", nil
	}
}

func (b *builder) orderBy(s filterScope, orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	m := s.model
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		var expr string
		if o.Aggregate != "" {
			if s.by == nil {
				return "", appErrors.Validation("ordering by %s is only valid in groupBy", o.Aggregate)
			}
			var err error
			if expr, _, err = aggregateExpr(m, o.Aggregate, o.Field); err != nil {
				return "", err
			}
		} else {
			f, ok := m.Field(o.Field)
			if !ok {
				return "", appErrors.Validation("unknown orderBy field %q on %s", o.Field, m.Name)
			}
			if s.by != nil && !s.by[f.Name] {
				return "", appErrors.Validation("orderBy field %q must be part of by", f.Name)
			}
			expr = Quote(f.Name)
		}

		part := expr
		switch o.Sort {
		case SortDesc:
			part += " DESC"
		case SortAsc, "":
			part += " ASC"
		default:
			return "", appErrors.Validation("invalid sort order %q", o.Sort)
		}
		switch o.Nulls {
		case NullsFirst:
			part += " NULLS FIRST"
		case NullsLast:
			part += " NULLS LAST"
		case "":
		default:
			return "", appErrors.Validation("invalid nulls placement %q", o.Nulls)
		}
		parts = append(parts, part)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// SelectPlan is the shape of a single-table read.
type SelectPlan struct {
	Columns   []string
	Where     Where
	OrderBy   []Order
	Limit     int
	Offset    int
	ForUpdate bool
}

// BuildSelect compiles a read. Columns default to every scalar; Limit 0 means
// no limit.
func BuildSelect(m *Model, p SelectPlan) (Statement, error) {
	b := &builder{}
	cols := p.Columns
	if len(cols) == 0 {
		cols = m.ScalarNames()
	}
	quoted, err := quoteColumns(m, cols)
	if err != nil {
		return Statement{}, err
	}

	sql := "SELECT " + quoted + " FROM " + m.quotedTable()
	tail, err := b.filterTail(m, p.Where, p.OrderBy, p.Limit, p.Offset)
	if err != nil {
		return Statement{}, err
	}
	sql += tail
	if p.ForUpdate {
		sql += " FOR UPDATE"
	}
	return b.statement(sql), nil
}

func (b *builder) filterTail(m *Model, w Where, orders []Order, limit, offset int) (string, error) {
	s := filterScope{model: m}
	var sql string
	cond, err := b.where(s, w)
	if err != nil {
		return "", err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	order, err := b.orderBy(s, orders)
	if err != nil {
		return "", err
	}
	sql += order
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	return sql, nil
}

func quoteColumns(m *Model, cols []string) (string, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if _, ok := m.Field(c); !ok {
			return "", appErrors.Validation("unknown field %q on %s", c, m.Name)
		}
		quoted[i] = Quote(c)
	}
	return strings.Join(quoted, ", "), nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
