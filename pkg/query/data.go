package query

import (
	"time"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// Data carries column values for create and update. Values may be plain,
// Update operators, or NestedWrite for relation keys.
type Data map[string]interface{}

type updateKind int

const (
	updSet updateKind = iota
	updIncrement
	updDecrement
	updMultiply
	updDivide
)

var updateSQL = map[updateKind]string{updIncrement: "+", updDecrement: "-", updMultiply: "*", updDivide: "/"}

var updateNames = map[updateKind]string{
	updSet:       "set",
	updIncrement: "increment",
	updDecrement: "decrement",
	updMultiply:  "multiply",
	updDivide:    "divide",
}

// Update is an explicit write operator.
type Update struct {
	kind  updateKind
	value interface{}
}

func Set(v interface{}) Update       { return Update{kind: updSet, value: v} }
func Increment(n interface{}) Update { return Update{kind: updIncrement, value: n} }
func Decrement(n interface{}) Update { return Update{kind: updDecrement, value: n} }
func Multiply(n interface{}) Update  { return Update{kind: updMultiply, value: n} }
func Divide(n interface{}) Update    { return Update{kind: updDivide, value: n} }

// NestedWrite creates or connects related rows alongside the parent write.
type NestedWrite struct {
	Create  []Data
	Connect []Where
}

// NestedCreate creates related rows.
func NestedCreate(rows ...Data) NestedWrite { return NestedWrite{Create: rows} }

// NestedConnect links existing rows selected by unique filters.
func NestedConnect(filters ...Where) NestedWrite { return NestedWrite{Connect: filters} }

// Assignment is one column write inside INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  interface{}
	Null   bool
	kind   updateKind
}

// RelationWrite is a nested write addressed to one relation.
type RelationWrite struct {
	Relation Relation
	Write    NestedWrite
}

// WritePlan is validated, column-ordered write data.
type WritePlan struct {
	Assignments []Assignment
	Nested      []RelationWrite
}

// Has reports whether column is assigned.
func (p WritePlan) Has(column string) bool {
	for _, a := range p.Assignments {
		if a.Column == column {
			return true
		}
	}
	return false
}

// Value returns the value bound to column.
func (p WritePlan) Value(column string) (interface{}, bool) {
	for _, a := range p.Assignments {
		if a.Column == column && a.kind == updSet {
			if a.Null {
				return nil, true
			}
			return a.Value, true
		}
	}
	return nil, false
}

// Assign adds or replaces a plain value, keeping declaration order.
func (p *WritePlan) Assign(m *Model, column string, value interface{}) {
	a := Assignment{Column: column, Value: value, Null: value == nil}
	for i := range p.Assignments {
		if p.Assignments[i].Column == column {
			p.Assignments[i] = a
			return
		}
	}
	p.Assignments = append(p.Assignments, a)
	p.sort(m)
}

// Stamp sets the client-managed updated-at columns unless already assigned.
func (p *WritePlan) Stamp(m *Model, now time.Time) {
	for _, col := range m.UpdatedAtFields() {
		if !p.Has(col) {
			p.Assign(m, col, now)
		}
	}
}

func (p *WritePlan) sort(m *Model) {
	ordered := make([]Assignment, 0, len(p.Assignments))
	for _, f := range m.Fields {
		for _, a := range p.Assignments {
			if a.Column == f.Name {
				ordered = append(ordered, a)
			}
		}
	}
	p.Assignments = ordered
}

// WriteMode selects which operators a plan accepts.
type WriteMode int

const (
	ModeCreate WriteMode = iota
	ModeCreateMany
	ModeUpdate
	ModeUpdateMany
)

// PlanWrite validates data against the model and returns column-ordered
// assignments plus nested relation writes.
func (m *Model) PlanWrite(d Data, mode WriteMode) (WritePlan, error) {
	var plan WritePlan
	for key := range d {
		if _, ok := m.Field(key); ok {
			continue
		}
		if _, ok := m.Relation(key); ok {
			continue
		}
		return plan, appErrors.Validation("unknown argument %q in %s data", key, m.Name)
	}

	for _, f := range m.Fields {
		raw, present := d[f.Name]
		if !present {
			continue
		}
		a, skip, err := m.assignment(f, raw, mode)
		if err != nil {
			return plan, err
		}
		if !skip {
			plan.Assignments = append(plan.Assignments, a)
		}
	}

	for _, rel := range m.Relations {
		raw, present := d[rel.Name]
		if !present {
			continue
		}
		if _, st := resolve(raw); st == stateUndefined {
			continue
		}
		if mode == ModeCreateMany || mode == ModeUpdateMany {
			return plan, appErrors.Validation("nested writes on %s.%s are not supported by bulk operations", m.Name, rel.Name)
		}
		nw, ok := raw.(NestedWrite)
		if !ok {
			return plan, appErrors.Validation("%s.%s expects a nested create or connect", m.Name, rel.Name)
		}
		if len(nw.Create)+len(nw.Connect) == 0 {
			continue
		}
		if rel.Kind == ToOne && len(nw.Create)+len(nw.Connect) > 1 {
			return plan, appErrors.Validation("%s.%s accepts a single nested create or connect", m.Name, rel.Name)
		}
		for _, col := range rel.Fields {
			if _, direct := d[col]; direct && rel.Kind == ToOne {
				return plan, appErrors.Validation("%s.%s and %s.%s cannot both be written", m.Name, rel.Name, m.Name, col)
			}
		}
		plan.Nested = append(plan.Nested, RelationWrite{Relation: rel, Write: nw})
	}
	return plan, nil
}

func (m *Model) assignment(f Field, raw interface{}, mode WriteMode) (Assignment, bool, error) {
	kind := updSet
	value := raw
	if u, ok := raw.(Update); ok {
		kind, value = u.kind, u.value
	}
	if kind != updSet && (mode == ModeCreate || mode == ModeCreateMany) {
		return Assignment{}, false, appErrors.Validation("%s is not allowed when creating %s.%s", updateNames[kind], m.Name, f.Name)
	}

	v, st := resolve(value)
	switch st {
	case stateUndefined:
		return Assignment{}, true, nil
	case stateNull:
		if kind != updSet {
			return Assignment{}, false, appErrors.Validation("%s on %s.%s needs a number", updateNames[kind], m.Name, f.Name)
		}
		if !f.Nullable {
			return Assignment{}, false, appErrors.Validation("argument %s.%s must not be null", m.Name, f.Name)
		}
		return Assignment{Column: f.Name, Null: true, kind: updSet}, false, nil
	}

	if kind != updSet && !f.Type.Numeric() {
		return Assignment{}, false, appErrors.Validation("%s is only allowed on numeric fields, %s.%s is %s", updateNames[kind], m.Name, f.Name, f.Type)
	}
	coerced, err := Coerce(m.Name, f, v)
	if err != nil {
		return Assignment{}, false, err
	}
	if kind == updDivide {
		if n, ok := toFloat64(coerced); ok && n == 0 {
			return Assignment{}, false, appErrors.Validation("division by zero on %s.%s", m.Name, f.Name)
		}
	}
	return Assignment{Column: f.Name, Value: coerced, kind: kind}, false, nil
}

// MissingRequired lists required columns the plan leaves unset.
func (m *Model) MissingRequired(p WritePlan) []string {
	var missing []string
	for _, f := range m.Fields {
		if f.Required() && !p.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
