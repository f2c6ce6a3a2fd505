// Package query describes models and compiles typed CRUD arguments (filters,
// ordering, pagination, data and aggregations) into PostgreSQL statements.
package query

import (
	"fmt"
	"strings"
)

// FieldType is the storage type of a scalar column.
type FieldType int

const (
	TypeInt FieldType = iota
	TypeBigInt
	TypeFloat
	TypeString
	TypeBool
	TypeDateTime
)

func (t FieldType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "BigInt"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	case TypeBool:
		return "Boolean"
	case TypeDateTime:
		return "DateTime"
	default:
		return "Unknown"
	}
}

// Numeric reports whether the type accepts arithmetic update operators and
// avg/sum aggregates.
func (t FieldType) Numeric() bool {
	return t == TypeInt || t == TypeBigInt || t == TypeFloat
}

// DefaultKind tells who fills a column the caller left out.
type DefaultKind int

const (
	// NoDefault columns must be supplied on create unless nullable.
	NoDefault DefaultKind = iota
	// DefaultAutoIncrement columns are filled by a sequence.
	DefaultAutoIncrement
	// DefaultNow columns are filled by the store with now().
	DefaultNow
	// DefaultStatic columns carry a literal default declared in the table.
	DefaultStatic
	// DefaultUpdatedAt columns are stamped by the client on every write.
	DefaultUpdatedAt
)

// Field describes a scalar column.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
	Default  DefaultKind
}

// Required reports whether create must carry a value for the field.
func (f Field) Required() bool {
	return !f.Nullable && f.Default == NoDefault
}

// RelationKind distinguishes single and list relations.
type RelationKind int

const (
	ToOne RelationKind = iota
	ToMany
)

// Relation links a model to another one. Fields are columns of the owning
// model and References the matching columns on Target.
type Relation struct {
	Name       string
	Target     string
	Kind       RelationKind
	Fields     []string
	References []string
}

// UniqueKey is a primary key or unique constraint. Name is the compound
// selector accepted in unique filters, e.g. user_id_lecture_id.
type UniqueKey struct {
	Name   string
	Fields []string
}

// Compound reports whether the key spans more than one column.
func (k UniqueKey) Compound() bool { return len(k.Fields) > 1 }

// NewUniqueKey derives the key name from its columns.
func NewUniqueKey(fields ...string) UniqueKey {
	return UniqueKey{Name: strings.Join(fields, "_"), Fields: fields}
}

// Model describes a table. Fields keep declaration order, which drives
// column order in every generated statement.
type Model struct {
	Name       string
	Table      string
	Fields     []Field
	PrimaryKey UniqueKey
	Uniques    []UniqueKey
	Relations  []Relation

	schema    *Schema
	fieldIdx  map[string]int
	relIdx    map[string]int
	uniqueIdx map[string]UniqueKey
}

// Schema is the registry every model resolves its relations against.
type Schema struct {
	models map[string]*Model
	order  []string
}

// NewSchema indexes the models and checks every relation target and column.
func NewSchema(models ...*Model) (*Schema, error) {
	s := &Schema{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		if _, dup := s.models[m.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", m.Name)
		}
		m.schema = s
		m.index()
		s.models[m.Name] = m
		s.order = append(s.order, m.Name)
	}

	for _, m := range models {
		for _, key := range m.UniqueKeys() {
			for _, f := range key.Fields {
				if _, ok := m.Field(f); !ok {
					return nil, fmt.Errorf("model %s: unique key %s references unknown column %q", m.Name, key.Name, f)
				}
			}
		}
		for _, rel := range m.Relations {
			target, ok := s.models[rel.Target]
			if !ok {
				return nil, fmt.Errorf("model %s: relation %s targets unknown model %q", m.Name, rel.Name, rel.Target)
			}
			if len(rel.Fields) == 0 || len(rel.Fields) != len(rel.References) {
				return nil, fmt.Errorf("model %s: relation %s has mismatched key columns", m.Name, rel.Name)
			}
			for i := range rel.Fields {
				if _, ok := m.Field(rel.Fields[i]); !ok {
					return nil, fmt.Errorf("model %s: relation %s uses unknown column %q", m.Name, rel.Name, rel.Fields[i])
				}
				if _, ok := target.Field(rel.References[i]); !ok {
					return nil, fmt.Errorf("model %s: relation %s references unknown column %s.%s", m.Name, rel.Name, target.Name, rel.References[i])
				}
			}
		}
	}
	return s, nil
}

// MustSchema is NewSchema that panics on an inconsistent declaration.
func MustSchema(models ...*Model) *Schema {
	s, err := NewSchema(models...)
	if err != nil {
		panic(err)
	}
	return s
}

// Model looks a model up by name.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Models returns the models in registration order.
func (s *Schema) Models() []*Model {
	out := make([]*Model, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.models[name])
	}
	return out
}

func (m *Model) index() {
	m.fieldIdx = make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		m.fieldIdx[f.Name] = i
	}
	m.relIdx = make(map[string]int, len(m.Relations))
	for i, r := range m.Relations {
		m.relIdx[r.Name] = i
	}
	m.uniqueIdx = make(map[string]UniqueKey)
	for _, k := range m.UniqueKeys() {
		if k.Compound() {
			m.uniqueIdx[k.Name] = k
		}
	}
}

// Schema returns the registry the model belongs to.
func (m *Model) Schema() *Schema { return m.schema }

// Field looks up a scalar column.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.fieldIdx[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// Relation looks up a relation by name.
func (m *Model) Relation(name string) (Relation, bool) {
	i, ok := m.relIdx[name]
	if !ok {
		return Relation{}, false
	}
	return m.Relations[i], true
}

// Target resolves the model a relation points at.
func (m *Model) Target(rel Relation) *Model {
	if m.schema == nil {
		return nil
	}
	return m.schema.models[rel.Target]
}

// CompoundKey looks a compound unique selector up by name.
func (m *Model) CompoundKey(name string) (UniqueKey, bool) {
	k, ok := m.uniqueIdx[name]
	return k, ok
}

// UniqueKeys returns the primary key followed by the unique constraints.
func (m *Model) UniqueKeys() []UniqueKey {
	keys := make([]UniqueKey, 0, len(m.Uniques)+1)
	if len(m.PrimaryKey.Fields) > 0 {
		keys = append(keys, m.PrimaryKey)
	}
	return append(keys, m.Uniques...)
}

// ScalarNames returns every column in declaration order.
func (m *Model) ScalarNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// UpdatedAtFields returns the columns stamped on every write.
func (m *Model) UpdatedAtFields() []string {
	var out []string
	for _, f := range m.Fields {
		if f.Default == DefaultUpdatedAt {
			out = append(out, f.Name)
		}
	}
	return out
}

// Quote renders a PostgreSQL identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (m *Model) quotedTable() string { return Quote(m.Table) }

func (m *Model) column(qualifier, name string) string {
	if qualifier == "" {
		return Quote(name)
	}
	return Quote(qualifier) + "." + Quote(name)
}
