package repository

import (
	"context"
	"reflect"

	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// loadRelations fills the relation fields of every row in rows, a []T.
func (e *engine) loadRelations(ctx context.Context, m *query.Model, rows reflect.Value, loads []query.RelationLoad) error {
	for _, load := range loads {
		if err := e.loadRelation(ctx, m, rows, load); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) loadRelation(ctx context.Context, m *query.Model, rows reflect.Value, load query.RelationLoad) error {
	rel, args := load.Relation, load.Args
	target := m.Target(rel)
	fieldIdx, ok := relationField(rowType(m), rel.Name)
	if !ok {
		panic("repository: " + m.Name + " has no field for relation " + rel.Name)
	}

	keys := make([]query.Where, 0, rows.Len())
	seen := make(map[string]bool, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		values := columnValues(rows.Index(i), rel.Fields)
		if hasNil(values) {
			continue
		}
		k := groupKey(values)
		if seen[k] {
			continue
		}
		seen[k] = true
		w := make(query.Where, len(values))
		for j, ref := range rel.References {
			w[ref] = values[j]
		}
		keys = append(keys, w)
	}

	children := newRows(target)
	proj, err := target.Project(args.Select, args.Include)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		children, err = e.fetchChildren(ctx, target, rel, keys, args, proj)
		if err != nil {
			return err
		}
	}

	groups := make(map[string][]int)
	for i := 0; i < children.Len(); i++ {
		k := groupKey(columnValues(children.Index(i), rel.References))
		groups[k] = append(groups[k], i)
	}

	for i := 0; i < rows.Len(); i++ {
		parent := rows.Index(i)
		field := parent.FieldByIndex(fieldIdx)
		values := columnValues(parent, rel.Fields)
		var members []int
		if !hasNil(values) {
			members = groups[groupKey(values)]
		}

		if rel.Kind == query.ToOne {
			if len(members) == 0 {
				field.Set(reflect.Zero(field.Type()))
				continue
			}
			ptr := reflect.New(field.Type().Elem())
			ptr.Elem().Set(children.Index(members[0]))
			field.Set(ptr)
			continue
		}

		group := reflect.MakeSlice(field.Type(), 0, len(members))
		for _, idx := range members {
			group = reflect.Append(group, children.Index(idx))
		}
		field.Set(e.windowGroup(target, group, args))
	}
	return nil
}

// fetchChildren reads every related row of the parents identified by keys,
// ordered as the relation arguments ask.
func (e *engine) fetchChildren(ctx context.Context, target *query.Model, rel query.Relation, keys []query.Where, args query.FindArgs, proj query.Projection) (reflect.Value, error) {
	var keyFilter query.Where
	if len(rel.References) == 1 {
		col := rel.References[0]
		values := make([]interface{}, len(keys))
		for i, k := range keys {
			values[i] = k[col]
		}
		keyFilter = query.Where{col: query.In(values...)}
	} else {
		keyFilter = query.Or(keys...)
	}

	orders := append([]query.Order(nil), args.OrderBy...)
	backwards := args.Take != nil && *args.Take < 0
	extra := append([]string(nil), rel.References...)
	extra = append(extra, args.Distinct...)
	if args.Cursor != nil || backwards {
		orders = withTiebreak(target, orders)
	}
	if backwards {
		for i := range orders {
			orders[i] = orders[i].Flipped()
		}
	}
	if args.Cursor != nil {
		sel, err := target.UniqueSelectorOf(args.Cursor)
		if err != nil {
			return reflect.Value{}, err
		}
		extra = append(extra, sel.Key.Fields...)
	}

	stmt, err := query.BuildSelect(target, query.SelectPlan{
		Columns: readColumns(target, proj, extra...),
		Where:   query.And(args.Where, keyFilter),
		OrderBy: orders,
	})
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(reflect.SliceOf(rowType(target)))
	if err := e.selectRows(ctx, target, "findMany."+rel.Name, ptr.Interface(), stmt); err != nil {
		return reflect.Value{}, err
	}
	children := ptr.Elem()
	if children.IsNil() {
		children = newRows(target)
	}
	if proj.HasRelations() {
		if err := e.loadRelations(ctx, target, children, proj.Relations); err != nil {
			return reflect.Value{}, err
		}
	}
	return children, nil
}

// windowGroup applies cursor, distinct, skip and take to one parent's
// children, which arrive already ordered.
func (e *engine) windowGroup(target *query.Model, group reflect.Value, args query.FindArgs) reflect.Value {
	if args.Cursor != nil {
		sel, _ := target.UniqueSelectorOf(args.Cursor)
		start := -1
		for i := 0; i < group.Len(); i++ {
			if matchesSelector(target, group.Index(i), sel) {
				start = i
				break
			}
		}
		if start < 0 {
			return reflect.MakeSlice(group.Type(), 0, 0)
		}
		group = group.Slice(start, group.Len())
	}
	if len(args.Distinct) > 0 {
		group = distinctRows(group, args.Distinct)
	}
	limit := 0
	if args.Take != nil {
		if *args.Take == 0 {
			return reflect.MakeSlice(group.Type(), 0, 0)
		}
		limit = abs(*args.Take)
	}
	group = page(group, args.Skip, limit)
	if args.Take != nil && *args.Take < 0 {
		out := reflect.MakeSlice(group.Type(), group.Len(), group.Len())
		reflect.Copy(out, group)
		reverseRows(out)
		group = out
	}
	return group
}
