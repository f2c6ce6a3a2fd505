package query

import (
	"strings"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// UniqueSelector is the unique key a filter pins down and its values.
type UniqueSelector struct {
	Key    UniqueKey
	Values map[string]interface{}
	// Exact is true when the filter holds nothing besides the selector.
	Exact bool
}

// Where renders the selector as a plain equality filter.
func (u UniqueSelector) Where() Where {
	w := make(Where, len(u.Values))
	for k, v := range u.Values {
		w[k] = v
	}
	return w
}

// UniqueSelectorOf finds a unique key fully constrained by equalities at the
// top level of w. Compound selectors such as user_id_lecture_id count too.
func (m *Model) UniqueSelectorOf(w Where) (UniqueSelector, error) {
	equalities := make(map[string]interface{})
	viaCompound := make(map[string]string)
	for key, raw := range w {
		if uk, ok := m.CompoundKey(key); ok {
			values, ok := asWhere(raw)
			if !ok {
				continue
			}
			for _, col := range uk.Fields {
				if v, ok := equalityValue(values[col]); ok {
					equalities[col] = v
					viaCompound[col] = key
				}
			}
			continue
		}
		if _, ok := m.Field(key); !ok {
			continue
		}
		if v, ok := equalityValue(raw); ok {
			equalities[key] = v
		}
	}

	for _, uk := range m.UniqueKeys() {
		values := make(map[string]interface{}, len(uk.Fields))
		for _, col := range uk.Fields {
			v, ok := equalities[col]
			if !ok {
				break
			}
			values[col] = v
		}
		if len(values) != len(uk.Fields) {
			continue
		}
		used := make(map[string]bool)
		for _, col := range uk.Fields {
			if via, ok := viaCompound[col]; ok {
				used[via] = true
			} else {
				used[col] = true
			}
		}
		exact := len(used) == len(w)
		return UniqueSelector{Key: uk, Values: values, Exact: exact}, nil
	}

	names := make([]string, 0, len(m.UniqueKeys()))
	for _, uk := range m.UniqueKeys() {
		names = append(names, uk.Name)
	}
	return UniqueSelector{}, appErrors.Validation("%s where must select a unique key: one of %s", m.Name, strings.Join(names, ", "))
}

func equalityValue(raw interface{}) (interface{}, bool) {
	if op, ok := raw.(Op); ok {
		if op.kind != opEquals || op.insensitive {
			return nil, false
		}
		raw = op.value
	}
	switch raw.(type) {
	case Ops, AggFilter, RelationFilter, Where, map[string]interface{}:
		return nil, false
	}
	v, st := resolve(raw)
	if st != stateValue {
		return nil, false
	}
	return v, true
}

// RelationLoad is a relation to fetch alongside the parent rows.
type RelationLoad struct {
	Relation Relation
	Args     FindArgs
}

// Projection is the resolved output shape of a read or write.
type Projection struct {
	// Scalars are the selected columns in declaration order.
	Scalars   []string
	Relations []RelationLoad
}

// HasRelations reports whether related rows must be loaded.
func (p Projection) HasRelations() bool { return len(p.Relations) > 0 }

// Project resolves select and include into a projection. Without either,
// every scalar is returned and no relation is loaded.
func (m *Model) Project(sel Select, inc Include) (Projection, error) {
	if sel != nil && inc != nil {
		return Projection{}, appErrors.Validation("please either use include or select on %s, but not both", m.Name)
	}

	var p Projection
	switch {
	case sel != nil:
		for key := range sel {
			_, isField := m.Field(key)
			_, isRel := m.Relation(key)
			if !isField && !isRel {
				return p, appErrors.Validation("unknown field %q in %s select", key, m.Name)
			}
		}
		for _, f := range m.Fields {
			raw, ok := sel[f.Name]
			if !ok {
				continue
			}
			on, isBool := raw.(bool)
			if !isBool {
				return p, appErrors.Validation("select of scalar %s.%s expects a boolean", m.Name, f.Name)
			}
			if on {
				p.Scalars = append(p.Scalars, f.Name)
			}
		}
		loads, err := m.relationLoads(map[string]interface{}(sel))
		if err != nil {
			return p, err
		}
		p.Relations = loads
		if len(p.Scalars) == 0 && len(p.Relations) == 0 {
			return p, appErrors.Validation("select on %s must contain at least one truthy value", m.Name)
		}
	case inc != nil:
		for key := range inc {
			if _, ok := m.Relation(key); ok {
				continue
			}
			if _, isField := m.Field(key); isField {
				return p, appErrors.Validation("include only accepts relations, %s.%s is a scalar", m.Name, key)
			}
			return p, appErrors.Validation("unknown relation %q in %s include", key, m.Name)
		}
		p.Scalars = m.ScalarNames()
		loads, err := m.relationLoads(map[string]interface{}(inc))
		if err != nil {
			return p, err
		}
		p.Relations = loads
	default:
		p.Scalars = m.ScalarNames()
	}
	return p, nil
}

func (m *Model) relationLoads(spec map[string]interface{}) ([]RelationLoad, error) {
	var loads []RelationLoad
	for _, rel := range m.Relations {
		raw, ok := spec[rel.Name]
		if !ok {
			continue
		}
		var args FindArgs
		switch v := raw.(type) {
		case bool:
			if !v {
				continue
			}
		case FindArgs:
			args = v
		case *FindArgs:
			if v == nil {
				continue
			}
			args = *v
		default:
			return nil, appErrors.Validation("%s.%s expects true or nested arguments", m.Name, rel.Name)
		}

		if rel.Kind == ToOne {
			if args.Where != nil || args.OrderBy != nil || args.Cursor != nil || args.Skip != 0 || args.Take != nil || args.Distinct != nil {
				return nil, appErrors.Validation("%s.%s is a single relation and only accepts select or include", m.Name, rel.Name)
			}
		}
		if err := m.Target(rel).ValidateFindArgs(args); err != nil {
			return nil, err
		}
		loads = append(loads, RelationLoad{Relation: rel, Args: args})
	}
	return loads, nil
}

// ValidateFindArgs checks a findMany-style argument set before any SQL runs.
func (m *Model) ValidateFindArgs(a FindArgs) error {
	if a.Skip < 0 {
		return appErrors.Validation("skip on %s must not be negative", m.Name)
	}
	for _, field := range a.Distinct {
		if _, ok := m.Field(field); !ok {
			return appErrors.Validation("unknown distinct field %q on %s", field, m.Name)
		}
	}
	for _, o := range a.OrderBy {
		if _, ok := m.Field(o.Field); !ok {
			return appErrors.Validation("unknown orderBy field %q on %s", o.Field, m.Name)
		}
		if o.Aggregate != "" {
			return appErrors.Validation("ordering by %s is only valid in groupBy", o.Aggregate)
		}
	}
	if a.Cursor != nil {
		if _, err := m.UniqueSelectorOf(a.Cursor); err != nil {
			return appErrors.Validation("cursor on %s must select a unique key", m.Name)
		}
	}
	if _, err := m.Project(a.Select, a.Include); err != nil {
		return err
	}
	return nil
}

// ValidateAggregateSelect checks every aggregate names a usable field.
func (m *Model) ValidateAggregateSelect(sel AggregateSelect) error {
	b := &builder{}
	_, err := b.aggregateColumns(m, sel)
	return err
}
