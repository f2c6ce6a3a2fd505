package repository

import (
	"context"
	"fmt"
	"reflect"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

func connectNotFound(target *query.Model, m *query.Model, rel query.Relation) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No '%s' record was found for a nested connect on %s.%s", target.Name, m.Name, rel.Name))
}

// identityWhere addresses a fetched row by its identity columns.
func identityWhere(m *query.Model, row reflect.Value) query.Where {
	w := query.Where{}
	for _, col := range identity(m) {
		v := columnValue(row, col)
		if v == nil {
			w[col] = query.Null
			continue
		}
		w[col] = v
	}
	return w
}

func missingArgument(m *query.Model, plan query.WritePlan) error {
	if missing := m.MissingRequired(plan); len(missing) > 0 {
		return appErrors.Validation("argument %s is missing in %s create", missing[0], m.Name)
	}
	return nil
}

// splitNested resolves to-one writes into plan and returns the to-many
// writes, which need the parent row first.
func (e *engine) splitNested(ctx context.Context, m *query.Model, plan *query.WritePlan) ([]query.RelationWrite, error) {
	var toMany []query.RelationWrite
	for _, rw := range plan.Nested {
		if rw.Relation.Kind == query.ToMany {
			toMany = append(toMany, rw)
			continue
		}
		if err := e.resolveToOne(ctx, m, plan, rw); err != nil {
			return nil, err
		}
	}
	plan.Nested = nil
	return toMany, nil
}

// resolveToOne creates or finds the related row and copies its key into the
// owning foreign key columns.
func (e *engine) resolveToOne(ctx context.Context, m *query.Model, plan *query.WritePlan, rw query.RelationWrite) error {
	rel := rw.Relation
	target := m.Target(rel)

	var linked reflect.Value
	if len(rw.Write.Connect) == 1 {
		w := rw.Write.Connect[0]
		if _, err := target.UniqueSelectorOf(w); err != nil {
			return err
		}
		stmt, err := query.BuildSelect(target, query.SelectPlan{Where: w, Limit: 1})
		if err != nil {
			return err
		}
		linked, err = e.getRow(ctx, target, "connect", stmt)
		if appErrors.IsNotFound(err) {
			return connectNotFound(target, m, rel)
		}
		if err != nil {
			return err
		}
	} else {
		child, err := target.PlanWrite(rw.Write.Create[0], query.ModeCreate)
		if err != nil {
			return err
		}
		if linked, err = e.insertPlanned(ctx, target, "create", child); err != nil {
			return err
		}
	}

	for i, col := range rel.Fields {
		plan.Assign(m, col, columnValue(linked, rel.References[i]))
	}
	return nil
}

// writeToMany creates or connects children of parent through rel.
func (e *engine) writeToMany(ctx context.Context, m *query.Model, parent reflect.Value, rw query.RelationWrite) error {
	rel := rw.Relation
	target := m.Target(rel)

	for _, d := range rw.Write.Create {
		child, err := target.PlanWrite(d, query.ModeCreate)
		if err != nil {
			return err
		}
		for i, col := range rel.References {
			child.Assign(target, col, columnValue(parent, rel.Fields[i]))
		}
		if _, err := e.insertPlanned(ctx, target, "create", child); err != nil {
			return err
		}
	}

	for _, w := range rw.Write.Connect {
		if _, err := target.UniqueSelectorOf(w); err != nil {
			return err
		}
		var set query.WritePlan
		for i, col := range rel.References {
			set.Assign(target, col, columnValue(parent, rel.Fields[i]))
		}
		set.Stamp(target, e.now())
		stmt, err := query.BuildUpdate(target, query.UpdatePlan{Set: set, Where: w, Returning: identity(target)})
		if err != nil {
			return err
		}
		if _, err := e.getRow(ctx, target, "connect", stmt); err != nil {
			if appErrors.IsNotFound(err) {
				return connectNotFound(target, m, rel)
			}
			return err
		}
		e.invalidate(ctx, target)
	}
	return nil
}

// insertPlanned inserts one row with its nested writes and returns a *T.
func (e *engine) insertPlanned(ctx context.Context, m *query.Model, op string, plan query.WritePlan) (reflect.Value, error) {
	toMany, err := e.splitNested(ctx, m, &plan)
	if err != nil {
		return reflect.Value{}, err
	}
	plan.Stamp(m, e.now())
	if err := missingArgument(m, plan); err != nil {
		return reflect.Value{}, err
	}

	stmt, err := query.BuildInsert(m, query.InsertPlan{Rows: []query.WritePlan{plan}, Returning: m.ScalarNames()})
	if err != nil {
		return reflect.Value{}, err
	}
	row, err := e.getRow(ctx, m, op, stmt)
	if err != nil {
		return reflect.Value{}, err
	}
	for _, rw := range toMany {
		if err := e.writeToMany(ctx, m, row, rw); err != nil {
			return reflect.Value{}, err
		}
	}
	e.invalidate(ctx, m)
	return row, nil
}

// updatePlanned updates the single row matched by where and returns a *T.
func (e *engine) updatePlanned(ctx context.Context, m *query.Model, op string, where query.Where, plan query.WritePlan) (reflect.Value, error) {
	toMany, err := e.splitNested(ctx, m, &plan)
	if err != nil {
		return reflect.Value{}, err
	}

	var stmt query.Statement
	if len(plan.Assignments) == 0 {
		stmt, err = query.BuildSelect(m, query.SelectPlan{Where: where, Limit: 1})
	} else {
		plan.Stamp(m, e.now())
		stmt, err = query.BuildUpdate(m, query.UpdatePlan{Set: plan, Where: where, Returning: m.ScalarNames()})
	}
	if err != nil {
		return reflect.Value{}, err
	}
	row, err := e.getRow(ctx, m, op, stmt)
	if appErrors.IsNotFound(err) {
		return reflect.Value{}, notFound(m, "an update")
	}
	if err != nil {
		return reflect.Value{}, err
	}

	for _, rw := range toMany {
		if err := e.writeToMany(ctx, m, row, rw); err != nil {
			return reflect.Value{}, err
		}
	}
	e.invalidate(ctx, m)
	return row, nil
}

// withLoads loads relations of a single written row.
func (e *engine) withLoads(ctx context.Context, m *query.Model, row reflect.Value, proj query.Projection) (reflect.Value, error) {
	if !proj.HasRelations() {
		return row, nil
	}
	rows := singleton(m, row)
	if err := e.loadRelations(ctx, m, rows, proj.Relations); err != nil {
		return reflect.Value{}, err
	}
	return rows.Index(0).Addr(), nil
}

// run executes fn in a transaction when the write spans several statements.
func (e *engine) run(ctx context.Context, multi bool, fn func(*engine) error) error {
	if multi {
		return e.atomically(ctx, fn)
	}
	return fn(e)
}

func (e *engine) create(ctx context.Context, m *query.Model, op string, args query.CreateArgs) (reflect.Value, query.Projection, error) {
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	plan, err := m.PlanWrite(args.Data, query.ModeCreate)
	if err != nil {
		return reflect.Value{}, proj, err
	}

	var row reflect.Value
	err = e.run(ctx, len(plan.Nested) > 0 || proj.HasRelations(), func(x *engine) error {
		created, err := x.insertPlanned(ctx, m, op, plan)
		if err != nil {
			return err
		}
		row, err = x.withLoads(ctx, m, created, proj)
		return err
	})
	return row, proj, err
}

func (e *engine) planMany(m *query.Model, data []query.Data) ([]query.WritePlan, error) {
	plans := make([]query.WritePlan, 0, len(data))
	now := e.now()
	for _, d := range data {
		plan, err := m.PlanWrite(d, query.ModeCreateMany)
		if err != nil {
			return nil, err
		}
		plan.Stamp(m, now)
		if err := missingArgument(m, plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (e *engine) createMany(ctx context.Context, m *query.Model, op string, args query.CreateManyArgs) (int64, error) {
	plans, err := e.planMany(m, args.Data)
	if err != nil || len(plans) == 0 {
		return 0, err
	}
	stmt, err := query.BuildInsert(m, query.InsertPlan{Rows: plans, SkipDuplicates: args.SkipDuplicates})
	if err != nil {
		return 0, err
	}
	n, err := e.exec(ctx, m, op, stmt)
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, m)
	return n, nil
}

func (e *engine) createManyAndReturn(ctx context.Context, m *query.Model, op string, args query.CreateManyArgs) (reflect.Value, query.Projection, error) {
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	plans, err := e.planMany(m, args.Data)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	if len(plans) == 0 {
		return newRows(m), proj, nil
	}
	stmt, err := query.BuildInsert(m, query.InsertPlan{Rows: plans, SkipDuplicates: args.SkipDuplicates, Returning: m.ScalarNames()})
	if err != nil {
		return reflect.Value{}, proj, err
	}

	var rows reflect.Value
	err = e.run(ctx, proj.HasRelations(), func(x *engine) error {
		ptr := reflect.New(reflect.SliceOf(rowType(m)))
		if err := x.selectRows(ctx, m, op, ptr.Interface(), stmt); err != nil {
			return err
		}
		rows = ptr.Elem()
		if rows.IsNil() {
			rows = newRows(m)
		}
		x.invalidate(ctx, m)
		if proj.HasRelations() {
			return x.loadRelations(ctx, m, rows, proj.Relations)
		}
		return nil
	})
	return rows, proj, err
}

func (e *engine) update(ctx context.Context, m *query.Model, op string, args query.UpdateArgs) (reflect.Value, query.Projection, error) {
	if _, err := m.UniqueSelectorOf(args.Where); err != nil {
		return reflect.Value{}, query.Projection{}, err
	}
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	plan, err := m.PlanWrite(args.Data, query.ModeUpdate)
	if err != nil {
		return reflect.Value{}, proj, err
	}

	var row reflect.Value
	err = e.run(ctx, len(plan.Nested) > 0 || proj.HasRelations(), func(x *engine) error {
		updated, err := x.updatePlanned(ctx, m, op, args.Where, plan)
		if err != nil {
			return err
		}
		row, err = x.withLoads(ctx, m, updated, proj)
		return err
	})
	return row, proj, err
}

func (e *engine) updateMany(ctx context.Context, m *query.Model, op string, args query.UpdateManyArgs) (int64, error) {
	plan, err := m.PlanWrite(args.Data, query.ModeUpdateMany)
	if err != nil || len(plan.Assignments) == 0 {
		return 0, err
	}
	plan.Stamp(m, e.now())
	stmt, err := query.BuildUpdate(m, query.UpdatePlan{Set: plan, Where: args.Where})
	if err != nil {
		return 0, err
	}
	n, err := e.exec(ctx, m, op, stmt)
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, m)
	return n, nil
}

// nativeUpsert reports whether the upsert can run as a single
// INSERT ... ON CONFLICT statement.
func nativeUpsert(m *query.Model, sel query.UniqueSelector, create, update query.WritePlan, proj query.Projection) bool {
	if !sel.Exact || len(create.Nested) > 0 || len(update.Nested) > 0 || proj.HasRelations() {
		return false
	}
	if len(m.MissingRequired(create)) > 0 {
		return false
	}
	for _, col := range sel.Key.Fields {
		v, ok := create.Value(col)
		f, _ := m.Field(col)
		if !ok || !query.SameValue(m.Name, f, v, sel.Values[col]) {
			return false
		}
	}
	return true
}

func (e *engine) upsert(ctx context.Context, m *query.Model, op string, args query.UpsertArgs) (reflect.Value, query.Projection, error) {
	sel, err := m.UniqueSelectorOf(args.Where)
	if err != nil {
		return reflect.Value{}, query.Projection{}, err
	}
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	create, err := m.PlanWrite(args.Create, query.ModeCreate)
	if err != nil {
		return reflect.Value{}, proj, err
	}
	update, err := m.PlanWrite(args.Update, query.ModeUpdate)
	if err != nil {
		return reflect.Value{}, proj, err
	}

	if nativeUpsert(m, sel, create, update, proj) {
		now := e.now()
		create.Stamp(m, now)
		if len(update.Assignments) > 0 {
			update.Stamp(m, now)
		}
		stmt, err := query.BuildUpsert(m, create, sel.Key, update, m.ScalarNames())
		if err != nil {
			return reflect.Value{}, proj, err
		}
		row, err := e.getRow(ctx, m, op, stmt)
		if err != nil {
			return reflect.Value{}, proj, err
		}
		e.invalidate(ctx, m)
		return row, proj, nil
	}

	var row reflect.Value
	err = e.atomically(ctx, func(x *engine) error {
		stmt, err := query.BuildSelect(m, query.SelectPlan{Where: args.Where, Limit: 1, ForUpdate: true})
		if err != nil {
			return err
		}
		existing, err := x.getRow(ctx, m, op, stmt)
		var written reflect.Value
		switch {
		case appErrors.IsNotFound(err):
			written, err = x.insertPlanned(ctx, m, op, create)
		case err == nil:
			written, err = x.updatePlanned(ctx, m, op, identityWhere(m, existing), update)
		}
		if err != nil {
			return err
		}
		row, err = x.withLoads(ctx, m, written, proj)
		return err
	})
	return row, proj, err
}

func (e *engine) delete(ctx context.Context, m *query.Model, op string, args query.DeleteArgs) (reflect.Value, query.Projection, error) {
	if _, err := m.UniqueSelectorOf(args.Where); err != nil {
		return reflect.Value{}, query.Projection{}, err
	}
	proj, err := m.Project(args.Select, args.Include)
	if err != nil {
		return reflect.Value{}, proj, err
	}

	if !proj.HasRelations() {
		stmt, err := query.BuildDelete(m, args.Where, m.ScalarNames())
		if err != nil {
			return reflect.Value{}, proj, err
		}
		row, err := e.getRow(ctx, m, op, stmt)
		if appErrors.IsNotFound(err) {
			return reflect.Value{}, proj, notFound(m, "a delete")
		}
		if err != nil {
			return reflect.Value{}, proj, err
		}
		e.invalidate(ctx, m)
		return row, proj, nil
	}

	var row reflect.Value
	err = e.atomically(ctx, func(x *engine) error {
		stmt, err := query.BuildSelect(m, query.SelectPlan{Where: args.Where, Limit: 1, ForUpdate: true})
		if err != nil {
			return err
		}
		existing, err := x.getRow(ctx, m, op, stmt)
		if appErrors.IsNotFound(err) {
			return notFound(m, "a delete")
		}
		if err != nil {
			return err
		}
		if row, err = x.withLoads(ctx, m, existing, proj); err != nil {
			return err
		}
		del, err := query.BuildDelete(m, identityWhere(m, existing), nil)
		if err != nil {
			return err
		}
		if _, err := x.exec(ctx, m, op, del); err != nil {
			return err
		}
		x.invalidate(ctx, m)
		return nil
	})
	return row, proj, err
}

func (e *engine) deleteMany(ctx context.Context, m *query.Model, op string, args query.DeleteManyArgs) (int64, error) {
	stmt, err := query.BuildDelete(m, args.Where, nil)
	if err != nil {
		return 0, err
	}
	n, err := e.exec(ctx, m, op, stmt)
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, m)
	return n, nil
}
