package query

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// The Decode functions turn JSON documents (decoded with UseNumber) into the
// typed argument structs. JSON null means SQL NULL; an absent key is ignored.

type object = map[string]interface{}

var filterOps = map[string]opKind{
	"equals":     opEquals,
	"not":        opNot,
	"in":         opIn,
	"notIn":      opNotIn,
	"lt":         opLt,
	"lte":        opLte,
	"gt":         opGt,
	"gte":        opGte,
	"contains":   opContains,
	"startsWith": opStartsWith,
	"endsWith":   opEndsWith,
}

var aggregateKeys = map[string]AggregateFunc{
	"_count": AggCount,
	"_avg":   AggAvg,
	"_sum":   AggSum,
	"_min":   AggMin,
	"_max":   AggMax,
}

func asObject(raw interface{}, what string) (object, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, appErrors.Validation("%s must be an object", what)
	}
	return obj, nil
}

func checkKeys(obj object, what string, allowed ...string) error {
	for key := range obj {
		if !contains(allowed, key) {
			return appErrors.Validation("unknown argument %q in %s", key, what)
		}
	}
	return nil
}

// DecodeWhere decodes a filter document for m.
func DecodeWhere(m *Model, raw interface{}) (Where, error) {
	return decodeWhere(m, raw, false)
}

// DecodeHaving decodes a groupBy having document, which may hold aggregate
// filters such as {"query_time": {"_avg": {"gt": 10}}}.
func DecodeHaving(m *Model, raw interface{}) (Where, error) {
	return decodeWhere(m, raw, true)
}

func decodeWhere(m *Model, raw interface{}, having bool) (Where, error) {
	obj, err := asObject(raw, m.Name+" filter")
	if err != nil || obj == nil {
		return nil, err
	}

	out := Where{}
	var extra []Where
	merge := func(key string, v interface{}) {
		if _, taken := out[key]; taken {
			extra = append(extra, Where{key: v})
			return
		}
		out[key] = v
	}

	for _, key := range sortedKeys(obj) {
		val := obj[key]
		switch {
		case key == KeyAnd || key == KeyOr || key == KeyNot:
			list, err := decodeWhereList(m, val, having)
			if err != nil {
				return nil, err
			}
			out[key] = list
		case isField(m, key):
			f, _ := m.Field(key)
			fragments, err := decodeFieldFilter(m, f, val, having)
			if err != nil {
				return nil, err
			}
			for _, v := range fragments {
				merge(key, v)
			}
		case isRelation(m, key):
			rel, _ := m.Relation(key)
			fragments, err := decodeRelationFilter(m, rel, val)
			if err != nil {
				return nil, err
			}
			for _, v := range fragments {
				merge(key, v)
			}
		default:
			if uk, ok := m.CompoundKey(key); ok {
				values, err := asObject(val, uk.Name)
				if err != nil {
					return nil, err
				}
				out[key] = Where(values)
				continue
			}
			return nil, appErrors.Validation("unknown argument %q in %s filter", key, m.Name)
		}
	}

	if len(extra) > 0 {
		return And(append([]Where{out}, extra...)...), nil
	}
	return out, nil
}

func decodeWhereList(m *Model, raw interface{}, having bool) ([]Where, error) {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]Where, 0, len(v))
		for _, item := range v {
			w, err := decodeWhere(m, item, having)
			if err != nil {
				return nil, err
			}
			out = append(out, w)
		}
		return out, nil
	case map[string]interface{}:
		w, err := decodeWhere(m, v, having)
		if err != nil {
			return nil, err
		}
		return []Where{w}, nil
	}
	return nil, appErrors.Validation("logical operators on %s expect an object or a list", m.Name)
}

func decodeFieldFilter(m *Model, f Field, raw interface{}, having bool) ([]interface{}, error) {
	obj, isObj := raw.(map[string]interface{})
	if !isObj {
		if _, isList := raw.([]interface{}); isList {
			return nil, appErrors.Validation("filter on %s.%s cannot be a list", m.Name, f.Name)
		}
		return []interface{}{raw}, nil
	}

	var fragments []interface{}
	plain := object{}
	for _, key := range sortedKeys(obj) {
		val := obj[key]
		fn, isAgg := aggregateKeys[key]
		if !isAgg {
			plain[key] = val
			continue
		}
		if !having {
			return nil, appErrors.Validation("aggregate filter %s on %s.%s is only valid in having", key, m.Name, f.Name)
		}
		inner, err := asObject(val, key)
		if err != nil {
			return nil, err
		}
		ops, err := decodeOps(m, f, inner)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, AggFilter{Func: fn, Ops: ops})
	}
	if len(plain) > 0 {
		ops, err := decodeOps(m, f, plain)
		if err != nil {
			return nil, err
		}
		fragments = append([]interface{}{ops}, fragments...)
	}
	return fragments, nil
}

func decodeOps(m *Model, f Field, obj object) (Ops, error) {
	insensitive := false
	if mode, ok := obj["mode"]; ok {
		switch mode {
		case "insensitive":
			insensitive = true
		case "default":
		default:
			return nil, appErrors.Validation("invalid mode %v on %s.%s", mode, m.Name, f.Name)
		}
	}

	ops := make(Ops, 0, len(obj))
	for _, key := range sortedKeys(obj) {
		if key == "mode" {
			continue
		}
		kind, ok := filterOps[key]
		if !ok {
			return nil, appErrors.Validation("unknown filter operator %q on %s.%s", key, m.Name, f.Name)
		}
		val := obj[key]
		var op Op
		switch kind {
		case opIn, opNotIn:
			list, ok := val.([]interface{})
			if !ok {
				return nil, appErrors.Validation("%s on %s.%s expects a list", key, m.Name, f.Name)
			}
			op = Op{kind: kind, value: list}
		case opContains, opStartsWith, opEndsWith:
			s, ok := val.(string)
			if !ok {
				return nil, appErrors.Validation("%s on %s.%s expects a string", key, m.Name, f.Name)
			}
			op = Op{kind: kind, value: s}
		case opNot:
			if nested, isObj := val.(map[string]interface{}); isObj {
				inner, err := decodeOps(m, f, nested)
				if err != nil {
					return nil, err
				}
				op = Ne(inner)
			} else {
				op = Ne(val)
			}
		default:
			op = Op{kind: kind, value: val}
		}
		if insensitive && f.Type == TypeString {
			op = op.Insensitive()
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeRelationFilter(m *Model, rel Relation, raw interface{}) ([]interface{}, error) {
	obj, err := asObject(raw, m.Name+"."+rel.Name)
	if err != nil {
		return nil, err
	}
	target := m.Target(rel)

	kinds := map[string]func(Where) RelationFilter{"some": Some, "every": Every, "none": None, "is": Is, "isNot": IsNot}
	var fragments []interface{}
	for _, key := range sortedKeys(obj) {
		ctor, ok := kinds[key]
		if !ok {
			continue
		}
		w, err := DecodeWhere(target, obj[key])
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, ctor(w))
	}
	if len(fragments) == len(obj) && len(fragments) > 0 {
		return fragments, nil
	}
	if len(fragments) > 0 {
		return nil, appErrors.Validation("relation filter on %s.%s mixes operators and fields", m.Name, rel.Name)
	}
	if rel.Kind == ToMany {
		return nil, appErrors.Validation("relation filter on %s.%s expects some, every or none", m.Name, rel.Name)
	}
	w, err := DecodeWhere(target, obj)
	if err != nil {
		return nil, err
	}
	return []interface{}{Is(w)}, nil
}

var updateOps = map[string]func(interface{}) Update{
	"set":       Set,
	"increment": Increment,
	"decrement": Decrement,
	"multiply":  Multiply,
	"divide":    Divide,
}

// DecodeData decodes a create or update data document for m.
func DecodeData(m *Model, raw interface{}) (Data, error) {
	obj, err := asObject(raw, m.Name+" data")
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, appErrors.Validation("%s data is required", m.Name)
	}

	out := make(Data, len(obj))
	for key, val := range obj {
		switch {
		case isField(m, key):
			if nested, ok := val.(map[string]interface{}); ok {
				if len(nested) != 1 {
					return nil, appErrors.Validation("%s.%s expects exactly one update operator", m.Name, key)
				}
				for opName, opVal := range nested {
					ctor, ok := updateOps[opName]
					if !ok {
						return nil, appErrors.Validation("unknown update operator %q on %s.%s", opName, m.Name, key)
					}
					out[key] = ctor(opVal)
				}
				continue
			}
			out[key] = val
		case isRelation(m, key):
			rel, _ := m.Relation(key)
			nw, err := decodeNestedWrite(m, rel, val)
			if err != nil {
				return nil, err
			}
			out[key] = nw
		default:
			return nil, appErrors.Validation("unknown argument %q in %s data", key, m.Name)
		}
	}
	return out, nil
}

func decodeNestedWrite(m *Model, rel Relation, raw interface{}) (NestedWrite, error) {
	var nw NestedWrite
	obj, err := asObject(raw, m.Name+"."+rel.Name)
	if err != nil {
		return nw, err
	}
	if err := checkKeys(obj, m.Name+"."+rel.Name, "create", "connect"); err != nil {
		return nw, err
	}
	target := m.Target(rel)

	for _, item := range listOf(obj["create"]) {
		d, err := DecodeData(target, item)
		if err != nil {
			return nw, err
		}
		nw.Create = append(nw.Create, d)
	}
	for _, item := range listOf(obj["connect"]) {
		w, err := DecodeWhere(target, item)
		if err != nil {
			return nw, err
		}
		nw.Connect = append(nw.Connect, w)
	}
	return nw, nil
}

func listOf(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// DecodeOrderBy decodes {"field": "asc"}, {"field": {"sort": "desc", "nulls":
// "last"}} or a list of those. groupBy orderings may also use {"_count":
// {"field": "desc"}}.
func DecodeOrderBy(m *Model, raw interface{}) ([]Order, error) {
	var items []interface{}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{v}
	default:
		return nil, appErrors.Validation("orderBy on %s must be an object or a list", m.Name)
	}

	var orders []Order
	for _, item := range items {
		obj, err := asObject(item, "orderBy entry")
		if err != nil {
			return nil, err
		}
		for _, key := range fieldOrderedKeys(m, obj) {
			val := obj[key]
			if fn, isAgg := aggregateKeys[key]; isAgg {
				inner, err := asObject(val, key)
				if err != nil {
					return nil, err
				}
				for _, field := range fieldOrderedKeys(m, inner) {
					o, err := decodeSort(field, inner[field])
					if err != nil {
						return nil, err
					}
					o.Aggregate = fn
					orders = append(orders, o)
				}
				continue
			}
			o, err := decodeSort(key, val)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func decodeSort(field string, raw interface{}) (Order, error) {
	o := Order{Field: field}
	switch v := raw.(type) {
	case string:
		o.Sort = SortOrder(strings.ToLower(v))
	case map[string]interface{}:
		if err := checkKeys(v, "orderBy."+field, "sort", "nulls"); err != nil {
			return o, err
		}
		s, _ := v["sort"].(string)
		o.Sort = SortOrder(strings.ToLower(s))
		if n, ok := v["nulls"].(string); ok {
			o.Nulls = NullsOrder(strings.ToLower(n))
		}
	default:
		return o, appErrors.Validation("orderBy.%s must be asc, desc or an object", field)
	}
	if o.Sort != SortAsc && o.Sort != SortDesc {
		return o, appErrors.Validation("orderBy.%s has invalid sort order %q", field, o.Sort)
	}
	if o.Nulls != "" && o.Nulls != NullsFirst && o.Nulls != NullsLast {
		return o, appErrors.Validation("orderBy.%s has invalid nulls placement %q", field, o.Nulls)
	}
	return o, nil
}

// DecodeSelect decodes a select document; relation entries may carry nested
// find arguments.
func DecodeSelect(m *Model, raw interface{}) (Select, error) {
	obj, err := asObject(raw, m.Name+" select")
	if err != nil || obj == nil {
		return nil, err
	}
	out := make(Select, len(obj))
	for key, val := range obj {
		v, err := decodeProjectionEntry(m, key, val)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// DecodeInclude decodes an include document.
func DecodeInclude(m *Model, raw interface{}) (Include, error) {
	obj, err := asObject(raw, m.Name+" include")
	if err != nil || obj == nil {
		return nil, err
	}
	out := make(Include, len(obj))
	for key, val := range obj {
		v, err := decodeProjectionEntry(m, key, val)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func decodeProjectionEntry(m *Model, key string, val interface{}) (interface{}, error) {
	if b, ok := val.(bool); ok {
		return b, nil
	}
	rel, ok := m.Relation(key)
	if !ok {
		return nil, appErrors.Validation("%s.%s expects a boolean", m.Name, key)
	}
	nested, err := asObject(val, m.Name+"."+key)
	if err != nil {
		return nil, err
	}
	args, err := DecodeFindArgs(m.Target(rel), nested)
	if err != nil {
		return nil, err
	}
	return &args, nil
}

func decodeInt(raw interface{}, what string) (int, error) {
	if raw == nil {
		return 0, nil
	}
	n, ok := toInt64(raw)
	if !ok {
		return 0, appErrors.Validation("%s must be an integer", what)
	}
	return int(n), nil
}

func decodeTake(raw interface{}) (*int, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := decodeInt(raw, "take")
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func decodeStrings(raw interface{}, what string) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, appErrors.Validation("%s must be a list of field names", what)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, appErrors.Validation("%s must be a field name or a list of field names", what)
}

func decodeCache(raw interface{}) (*CacheStrategy, error) {
	obj, err := asObject(raw, "cacheStrategy")
	if err != nil || obj == nil {
		return nil, err
	}
	seconds, err := decodeInt(obj["ttl"], "cacheStrategy.ttl")
	if err != nil {
		return nil, err
	}
	if seconds <= 0 {
		return nil, appErrors.Validation("cacheStrategy.ttl must be positive")
	}
	return &CacheStrategy{TTL: time.Duration(seconds) * time.Second}, nil
}

// DecodeFindArgs decodes findMany/findFirst arguments.
func DecodeFindArgs(m *Model, obj object) (FindArgs, error) {
	var a FindArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "orderBy", "cursor", "skip", "take", "distinct", "select", "include", "cacheStrategy"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.OrderBy, err = DecodeOrderBy(m, obj["orderBy"]); err != nil {
		return a, err
	}
	if a.Cursor, err = DecodeWhere(m, obj["cursor"]); err != nil {
		return a, err
	}
	if a.Skip, err = decodeInt(obj["skip"], "skip"); err != nil {
		return a, err
	}
	if a.Take, err = decodeTake(obj["take"]); err != nil {
		return a, err
	}
	if a.Distinct, err = decodeStrings(obj["distinct"], "distinct"); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	if a.Include, err = DecodeInclude(m, obj["include"]); err != nil {
		return a, err
	}
	a.Cache, err = decodeCache(obj["cacheStrategy"])
	return a, err
}

// DecodeUniqueArgs decodes findUnique arguments.
func DecodeUniqueArgs(m *Model, obj object) (UniqueArgs, error) {
	var a UniqueArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "select", "include", "cacheStrategy"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	if a.Include, err = DecodeInclude(m, obj["include"]); err != nil {
		return a, err
	}
	a.Cache, err = decodeCache(obj["cacheStrategy"])
	return a, err
}

// DecodeCreateArgs decodes create arguments.
func DecodeCreateArgs(m *Model, obj object) (CreateArgs, error) {
	var a CreateArgs
	if err := checkKeys(obj, m.Name+" arguments", "data", "select", "include"); err != nil {
		return a, err
	}
	var err error
	if a.Data, err = DecodeData(m, obj["data"]); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	a.Include, err = DecodeInclude(m, obj["include"])
	return a, err
}

// DecodeCreateManyArgs decodes createMany and createManyAndReturn arguments.
func DecodeCreateManyArgs(m *Model, obj object) (CreateManyArgs, error) {
	var a CreateManyArgs
	if err := checkKeys(obj, m.Name+" arguments", "data", "skipDuplicates", "select", "include"); err != nil {
		return a, err
	}
	for _, item := range listOf(obj["data"]) {
		d, err := DecodeData(m, item)
		if err != nil {
			return a, err
		}
		a.Data = append(a.Data, d)
	}
	if raw, ok := obj["skipDuplicates"]; ok {
		flag, isBool := raw.(bool)
		if !isBool {
			return a, appErrors.Validation("skipDuplicates must be a boolean")
		}
		a.SkipDuplicates = flag
	}
	var err error
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	a.Include, err = DecodeInclude(m, obj["include"])
	return a, err
}

// DecodeUpdateArgs decodes update arguments.
func DecodeUpdateArgs(m *Model, obj object) (UpdateArgs, error) {
	var a UpdateArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "data", "select", "include"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.Data, err = DecodeData(m, obj["data"]); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	a.Include, err = DecodeInclude(m, obj["include"])
	return a, err
}

// DecodeUpdateManyArgs decodes updateMany arguments.
func DecodeUpdateManyArgs(m *Model, obj object) (UpdateManyArgs, error) {
	var a UpdateManyArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "data"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	a.Data, err = DecodeData(m, obj["data"])
	return a, err
}

// DecodeUpsertArgs decodes upsert arguments.
func DecodeUpsertArgs(m *Model, obj object) (UpsertArgs, error) {
	var a UpsertArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "create", "update", "select", "include"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.Create, err = DecodeData(m, obj["create"]); err != nil {
		return a, err
	}
	if a.Update, err = DecodeData(m, obj["update"]); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	a.Include, err = DecodeInclude(m, obj["include"])
	return a, err
}

// DecodeDeleteArgs decodes delete arguments.
func DecodeDeleteArgs(m *Model, obj object) (DeleteArgs, error) {
	var a DeleteArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "select", "include"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.Select, err = DecodeSelect(m, obj["select"]); err != nil {
		return a, err
	}
	a.Include, err = DecodeInclude(m, obj["include"])
	return a, err
}

// DecodeDeleteManyArgs decodes deleteMany arguments.
func DecodeDeleteManyArgs(m *Model, obj object) (DeleteManyArgs, error) {
	var a DeleteManyArgs
	if err := checkKeys(obj, m.Name+" arguments", "where"); err != nil {
		return a, err
	}
	var err error
	a.Where, err = DecodeWhere(m, obj["where"])
	return a, err
}

// DecodeCountArgs decodes count arguments; select lists fields to count.
func DecodeCountArgs(m *Model, obj object) (CountArgs, error) {
	var a CountArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "orderBy", "cursor", "skip", "take", "select"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.OrderBy, err = DecodeOrderBy(m, obj["orderBy"]); err != nil {
		return a, err
	}
	if a.Cursor, err = DecodeWhere(m, obj["cursor"]); err != nil {
		return a, err
	}
	if a.Skip, err = decodeInt(obj["skip"], "skip"); err != nil {
		return a, err
	}
	if a.Take, err = decodeTake(obj["take"]); err != nil {
		return a, err
	}
	a.Fields, err = decodeFieldSet(m, obj["select"], "select", true)
	return a, err
}

func decodeFieldSet(m *Model, raw interface{}, what string, allowAll bool) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.(bool); ok {
		if b && allowAll {
			return []string{AllRows}, nil
		}
		if b {
			return nil, appErrors.Validation("%s expects an object of fields", what)
		}
		return nil, nil
	}
	obj, err := asObject(raw, what)
	if err != nil {
		return nil, err
	}
	var fields []string
	if on, _ := obj[AllRows].(bool); on && allowAll {
		fields = append(fields, AllRows)
	}
	for _, key := range fieldOrderedKeys(m, obj) {
		if key == AllRows {
			if !allowAll {
				return nil, appErrors.Validation("%s does not accept _all", what)
			}
			continue
		}
		if _, ok := m.Field(key); !ok {
			return nil, appErrors.Validation("unknown field %q in %s", key, what)
		}
		if on, _ := obj[key].(bool); on {
			fields = append(fields, key)
		}
	}
	return fields, nil
}

func decodeAggregateSelect(m *Model, obj object) (AggregateSelect, error) {
	var sel AggregateSelect
	var err error
	if sel.Count, err = decodeFieldSet(m, obj["_count"], "_count", true); err != nil {
		return sel, err
	}
	if sel.Avg, err = decodeFieldSet(m, obj["_avg"], "_avg", false); err != nil {
		return sel, err
	}
	if sel.Sum, err = decodeFieldSet(m, obj["_sum"], "_sum", false); err != nil {
		return sel, err
	}
	if sel.Min, err = decodeFieldSet(m, obj["_min"], "_min", false); err != nil {
		return sel, err
	}
	sel.Max, err = decodeFieldSet(m, obj["_max"], "_max", false)
	return sel, err
}

// DecodeAggregateArgs decodes aggregate arguments.
func DecodeAggregateArgs(m *Model, obj object) (AggregateArgs, error) {
	var a AggregateArgs
	if err := checkKeys(obj, m.Name+" arguments", "where", "orderBy", "cursor", "skip", "take", "_count", "_avg", "_sum", "_min", "_max"); err != nil {
		return a, err
	}
	var err error
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.OrderBy, err = DecodeOrderBy(m, obj["orderBy"]); err != nil {
		return a, err
	}
	if a.Cursor, err = DecodeWhere(m, obj["cursor"]); err != nil {
		return a, err
	}
	if a.Skip, err = decodeInt(obj["skip"], "skip"); err != nil {
		return a, err
	}
	if a.Take, err = decodeTake(obj["take"]); err != nil {
		return a, err
	}
	a.AggregateSelect, err = decodeAggregateSelect(m, obj)
	return a, err
}

// DecodeGroupByArgs decodes groupBy arguments.
func DecodeGroupByArgs(m *Model, obj object) (GroupByArgs, error) {
	var a GroupByArgs
	if err := checkKeys(obj, m.Name+" arguments", "by", "where", "having", "orderBy", "skip", "take", "_count", "_avg", "_sum", "_min", "_max"); err != nil {
		return a, err
	}
	var err error
	if a.By, err = decodeStrings(obj["by"], "by"); err != nil {
		return a, err
	}
	if a.Where, err = DecodeWhere(m, obj["where"]); err != nil {
		return a, err
	}
	if a.Having, err = DecodeHaving(m, obj["having"]); err != nil {
		return a, err
	}
	if a.OrderBy, err = DecodeOrderBy(m, obj["orderBy"]); err != nil {
		return a, err
	}
	if a.Skip, err = decodeInt(obj["skip"], "skip"); err != nil {
		return a, err
	}
	if a.Take, err = decodeTake(obj["take"]); err != nil {
		return a, err
	}
	a.AggregateSelect, err = decodeAggregateSelect(m, obj)
	return a, err
}

// DecodeJSON parses a document keeping numbers as json.Number.
func DecodeJSON(data []byte) (object, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return object{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj object
	if err := dec.Decode(&obj); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "request body must be a JSON object")
	}
	if obj == nil {
		obj = object{}
	}
	return obj, nil
}

func isField(m *Model, key string) bool {
	_, ok := m.Field(key)
	return ok
}

func isRelation(m *Model, key string) bool {
	_, ok := m.Relation(key)
	return ok
}

func sortedKeys(obj object) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fieldOrderedKeys lists keys in column declaration order, then the rest sorted.
func fieldOrderedKeys(m *Model, obj object) []string {
	keys := make([]string, 0, len(obj))
	for _, f := range m.Fields {
		if _, ok := obj[f.Name]; ok {
			keys = append(keys, f.Name)
		}
	}
	for _, k := range sortedKeys(obj) {
		if !contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
