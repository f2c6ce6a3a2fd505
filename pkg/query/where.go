package query

import "reflect"

// Where is a filter tree. Keys are scalar columns, relation names, compound
// unique selectors (e.g. user_id_lecture_id) or the logical keys AND, OR and
// NOT. A scalar value means equality; Op and Ops express other comparisons.
type Where map[string]interface{}

// Logical keys.
const (
	KeyAnd = "AND"
	KeyOr  = "OR"
	KeyNot = "NOT"
)

// And combines filters that must all hold. Empty filters are dropped.
func And(filters ...Where) Where {
	kept := nonEmpty(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Where{KeyAnd: kept}
}

// Or combines filters of which at least one must hold. Or() with no filter
// matches nothing.
func Or(filters ...Where) Where {
	return Where{KeyOr: filters}
}

// Not negates every filter given.
func Not(filters ...Where) Where {
	return Where{KeyNot: filters}
}

func nonEmpty(filters []Where) []Where {
	out := make([]Where, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			out = append(out, f)
		}
	}
	return out
}

type opKind int

const (
	opEquals opKind = iota
	opNot
	opIn
	opNotIn
	opLt
	opLte
	opGt
	opGte
	opContains
	opStartsWith
	opEndsWith
)

var opNames = map[opKind]string{
	opEquals:     "equals",
	opNot:        "not",
	opIn:         "in",
	opNotIn:      "notIn",
	opLt:         "lt",
	opLte:        "lte",
	opGt:         "gt",
	opGte:        "gte",
	opContains:   "contains",
	opStartsWith: "startsWith",
	opEndsWith:   "endsWith",
}

// Op is a single field comparison.
type Op struct {
	kind        opKind
	value       interface{}
	insensitive bool
}

// Ops applies several comparisons to one field; all must hold.
type Ops []Op

// Insensitive switches string comparisons to case-insensitive mode.
func (o Op) Insensitive() Op {
	o.insensitive = true
	return o
}

func (o Op) String() string { return opNames[o.kind] }

func Equals(v interface{}) Op { return Op{kind: opEquals, value: v} }

// Ne negates a value or another filter. Ne(nil) means IS NOT NULL.
func Ne(v interface{}) Op { return Op{kind: opNot, value: v} }

// In matches any of the values. A single slice argument is expanded.
func In(values ...interface{}) Op { return Op{kind: opIn, value: expand(values)} }

func NotIn(values ...interface{}) Op { return Op{kind: opNotIn, value: expand(values)} }

func Lt(v interface{}) Op  { return Op{kind: opLt, value: v} }
func Lte(v interface{}) Op { return Op{kind: opLte, value: v} }
func Gt(v interface{}) Op  { return Op{kind: opGt, value: v} }
func Gte(v interface{}) Op { return Op{kind: opGte, value: v} }

func Contains(s string) Op   { return Op{kind: opContains, value: s} }
func StartsWith(s string) Op { return Op{kind: opStartsWith, value: s} }
func EndsWith(s string) Op   { return Op{kind: opEndsWith, value: s} }

func expand(values []interface{}) []interface{} {
	if len(values) != 1 {
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return values
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

type relKind int

const (
	relSome relKind = iota
	relEvery
	relNone
	relIs
	relIsNot
)

var relNames = map[relKind]string{relSome: "some", relEvery: "every", relNone: "none", relIs: "is", relIsNot: "isNot"}

// RelationFilter filters on related rows.
type RelationFilter struct {
	kind  relKind
	where Where
}

// Some matches when at least one related row satisfies w.
func Some(w Where) RelationFilter { return RelationFilter{kind: relSome, where: w} }

// Every matches when all related rows satisfy w, including when there are none.
func Every(w Where) RelationFilter { return RelationFilter{kind: relEvery, where: w} }

// None matches when no related row satisfies w.
func None(w Where) RelationFilter { return RelationFilter{kind: relNone, where: w} }

// Is matches when the related row satisfies w.
func Is(w Where) RelationFilter { return RelationFilter{kind: relIs, where: w} }

// IsNot matches when the related row does not satisfy w.
func IsNot(w Where) RelationFilter { return RelationFilter{kind: relIsNot, where: w} }

// AggregateFunc names an aggregate in having filters, orderings and results.
type AggregateFunc string

const (
	AggCount AggregateFunc = "_count"
	AggAvg   AggregateFunc = "_avg"
	AggSum   AggregateFunc = "_sum"
	AggMin   AggregateFunc = "_min"
	AggMax   AggregateFunc = "_max"
)

// AggFilter compares an aggregate of a field inside a groupBy having clause.
type AggFilter struct {
	Func AggregateFunc
	Ops  Ops
}

// Having builds an aggregate comparison, e.g. Having(AggAvg, Gt(10)).
func Having(fn AggregateFunc, ops ...Op) AggFilter {
	return AggFilter{Func: fn, Ops: ops}
}

// asWheres accepts Where, []Where, map[string]interface{} or []interface{}.
func asWheres(v interface{}) ([]Where, bool) {
	switch t := v.(type) {
	case Where:
		return []Where{t}, true
	case map[string]interface{}:
		return []Where{Where(t)}, true
	case []Where:
		return t, true
	case []interface{}:
		out := make([]Where, 0, len(t))
		for _, item := range t {
			w, ok := asWhere(item)
			if !ok {
				return nil, false
			}
			out = append(out, w)
		}
		return out, true
	}
	return nil, false
}

func asWhere(v interface{}) (Where, bool) {
	switch t := v.(type) {
	case Where:
		return t, true
	case map[string]interface{}:
		return Where(t), true
	}
	return nil, false
}
