package repository

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/reflectx"

	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// columnMapper resolves db tags the same way sqlx scans them.
var columnMapper = reflectx.NewMapperFunc("db", strings.ToLower)

var relationFields sync.Map // reflect.Type -> map[string][]int

func rowType(m *query.Model) reflect.Type {
	t, ok := rowTypes[m.Name]
	if !ok {
		panic("repository: no row type registered for model " + m.Name)
	}
	return t
}

// newRows returns an empty, non-nil []T for the model.
func newRows(m *query.Model) reflect.Value {
	return reflect.MakeSlice(reflect.SliceOf(rowType(m)), 0, 0)
}

// columnValue reads a column from a row struct, dereferencing pointers. A nil
// pointer or an unknown column yields nil.
func columnValue(row reflect.Value, column string) interface{} {
	row = reflect.Indirect(row)
	fi := columnMapper.TypeMap(row.Type()).GetByPath(column)
	if fi == nil {
		return nil
	}
	v := reflectx.FieldByIndexesReadOnly(row, fi.Index)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

func columnValues(row reflect.Value, columns []string) []interface{} {
	out := make([]interface{}, len(columns))
	for i, c := range columns {
		out[i] = columnValue(row, c)
	}
	return out
}

// relationField returns the index of the struct field tagged rel:"name".
func relationField(t reflect.Type, name string) ([]int, bool) {
	cached, ok := relationFields.Load(t)
	if !ok {
		index := make(map[string][]int)
		for i := 0; i < t.NumField(); i++ {
			if tag := t.Field(i).Tag.Get("rel"); tag != "" {
				index[tag] = []int{i}
			}
		}
		cached, _ = relationFields.LoadOrStore(t, index)
	}
	idx, ok := cached.(map[string][]int)[name]
	return idx, ok
}

// groupKey renders key values into a comparable string.
func groupKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case nil:
			parts[i] = "\x00null"
		case time.Time:
			parts[i] = t.UTC().Format(time.RFC3339Nano)
		default:
			parts[i] = fmt.Sprint(t)
		}
	}
	return strings.Join(parts, "\x1f")
}

func hasNil(values []interface{}) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

// readColumns lists the projected scalars plus the extra columns a read needs
// internally, in declaration order.
func readColumns(m *query.Model, proj query.Projection, extra ...string) []string {
	want := make(map[string]bool, len(proj.Scalars)+len(extra))
	for _, c := range proj.Scalars {
		want[c] = true
	}
	for _, load := range proj.Relations {
		for _, c := range load.Relation.Fields {
			want[c] = true
		}
	}
	for _, c := range extra {
		want[c] = true
	}
	cols := make([]string, 0, len(want))
	for _, f := range m.Fields {
		if want[f.Name] {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// identity is the key used for tiebreaks and row addressing.
func identity(m *query.Model) []string {
	keys := m.UniqueKeys()
	if len(keys) == 0 {
		return m.ScalarNames()
	}
	return keys[0].Fields
}

func reverseRows(rows reflect.Value) {
	for i, j := 0, rows.Len()-1; i < j; i, j = i+1, j-1 {
		a, b := rows.Index(i).Interface(), rows.Index(j).Interface()
		rows.Index(i).Set(reflect.ValueOf(b))
		rows.Index(j).Set(reflect.ValueOf(a))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// matchesSelector reports whether row carries the selector's key values.
func matchesSelector(m *query.Model, row reflect.Value, sel query.UniqueSelector) bool {
	for col, want := range sel.Values {
		f, _ := m.Field(col)
		if !query.SameValue(m.Name, f, columnValue(row, col), want) {
			return false
		}
	}
	return true
}

// singleton wraps one row in a []T so slice helpers can process it.
func singleton(m *query.Model, row reflect.Value) reflect.Value {
	rows := reflect.MakeSlice(reflect.SliceOf(rowType(m)), 1, 1)
	rows.Index(0).Set(row.Elem())
	return rows
}
