package query

import (
	"strings"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// InsertPlan is the shape of an INSERT.
type InsertPlan struct {
	Rows []WritePlan
	// Returning lists the columns to return; empty returns nothing.
	Returning      []string
	SkipDuplicates bool
}

// BuildInsert compiles a single or multi-row INSERT. Columns missing from a
// row are written as DEFAULT.
func BuildInsert(m *Model, p InsertPlan) (Statement, error) {
	if len(p.Rows) == 0 {
		return Statement{}, appErrors.Validation("insert into %s needs at least one row", m.Name)
	}
	b := &builder{}

	var columns []string
	for _, f := range m.Fields {
		for _, row := range p.Rows {
			if row.Has(f.Name) {
				columns = append(columns, f.Name)
				break
			}
		}
	}

	sql := "INSERT INTO " + m.quotedTable()
	if len(columns) == 0 {
		if len(p.Rows) > 1 {
			// DEFAULT VALUES cannot be combined with several rows
			columns = []string{m.PrimaryKey.Fields[0]}
		} else {
			sql += " DEFAULT VALUES"
		}
	}

	if len(columns) > 0 {
		quoted, _ := quoteColumns(m, columns)
		sql += " (" + quoted + ") VALUES "
		tuples := make([]string, len(p.Rows))
		for i, row := range p.Rows {
			values := make([]string, len(columns))
			for j, col := range columns {
				v, ok := row.Value(col)
				switch {
				case !ok:
					values[j] = "DEFAULT"
				case v == nil:
					values[j] = "NULL"
				default:
					values[j] = b.bind(v)
				}
			}
			tuples[i] = "(" + strings.Join(values, ", ") + ")"
		}
		sql += strings.Join(tuples, ", ")
	}

	if p.SkipDuplicates {
		sql += " ON CONFLICT DO NOTHING"
	}
	if len(p.Returning) > 0 {
		quoted, err := quoteColumns(m, p.Returning)
		if err != nil {
			return Statement{}, err
		}
		sql += " RETURNING " + quoted
	}
	return b.statement(sql), nil
}

// UpdatePlan is the shape of an UPDATE.
type UpdatePlan struct {
	Set       WritePlan
	Where     Where
	Returning []string
}

// BuildUpdate compiles an UPDATE. The plan must assign at least one column.
func BuildUpdate(m *Model, p UpdatePlan) (Statement, error) {
	if len(p.Set.Assignments) == 0 {
		return Statement{}, appErrors.Validation("update on %s has no columns to set", m.Name)
	}
	b := &builder{}
	sql := "UPDATE " + m.quotedTable() + " SET " + b.assignments(m, p.Set, "")

	cond, err := b.where(filterScope{model: m}, p.Where)
	if err != nil {
		return Statement{}, err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	if len(p.Returning) > 0 {
		quoted, err := quoteColumns(m, p.Returning)
		if err != nil {
			return Statement{}, err
		}
		sql += " RETURNING " + quoted
	}
	return b.statement(sql), nil
}

func (b *builder) assignments(m *Model, p WritePlan, qualifier string) string {
	parts := make([]string, len(p.Assignments))
	for i, a := range p.Assignments {
		target := Quote(a.Column)
		switch {
		case a.Null:
			parts[i] = target + " = NULL"
		case a.kind == updSet:
			parts[i] = target + " = " + b.bind(a.Value)
		default:
			parts[i] = target + " = " + m.column(qualifier, a.Column) + " " + updateSQL[a.kind] + " " + b.bind(a.Value)
		}
	}
	return strings.Join(parts, ", ")
}

// BuildUpsert compiles INSERT ... ON CONFLICT (key) DO UPDATE. An empty
// update plan turns the conflict branch into a no-op update so the existing
// row is still returned.
func BuildUpsert(m *Model, create WritePlan, conflict UniqueKey, update WritePlan, returning []string) (Statement, error) {
	stmt, err := BuildInsert(m, InsertPlan{Rows: []WritePlan{create}})
	if err != nil {
		return Statement{}, err
	}
	b := &builder{args: stmt.Args}

	target := make([]string, len(conflict.Fields))
	for i, col := range conflict.Fields {
		target[i] = Quote(col)
	}
	sql := stmt.SQL + " ON CONFLICT (" + strings.Join(target, ", ") + ") DO UPDATE SET "
	if len(update.Assignments) == 0 {
		col := conflict.Fields[0]
		sql += Quote(col) + " = " + m.column("excluded", col)
	} else {
		sql += b.assignments(m, update, m.Table)
	}

	quoted, err := quoteColumns(m, returning)
	if err != nil {
		return Statement{}, err
	}
	sql += " RETURNING " + quoted
	return b.statement(sql), nil
}

// BuildDelete compiles a DELETE.
func BuildDelete(m *Model, w Where, returning []string) (Statement, error) {
	b := &builder{}
	sql := "DELETE FROM " + m.quotedTable()
	cond, err := b.where(filterScope{model: m}, w)
	if err != nil {
		return Statement{}, err
	}
	if cond != "" {
		sql += " WHERE " + cond
	}
	if len(returning) > 0 {
		quoted, err := quoteColumns(m, returning)
		if err != nil {
			return Statement{}, err
		}
		sql += " RETURNING " + quoted
	}
	return b.statement(sql), nil
}
