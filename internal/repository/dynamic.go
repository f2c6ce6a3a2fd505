package repository

import (
	"context"
	"reflect"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// Record is a projected row: the selected scalars plus loaded relations.
type Record map[string]interface{}

// Operations lists the names accepted by DynamicTable.Execute.
var Operations = []string{
	"findUnique", "findUniqueOrThrow", "findFirst", "findFirstOrThrow", "findMany",
	"create", "createMany", "createManyAndReturn", "update", "updateMany", "upsert",
	"delete", "deleteMany", "count", "aggregate", "groupBy",
}

// DynamicTable runs operations addressed by model and operation name with
// decoded JSON arguments. Results are Records so select and include shape
// the output.
type DynamicTable struct {
	engine *engine
	model  *query.Model
}

// Model returns the descriptor of the table.
func (d *DynamicTable) Model() *query.Model { return d.model }

// Execute decodes args for op and runs it.
func (d *DynamicTable) Execute(ctx context.Context, op string, args map[string]interface{}) (interface{}, error) {
	m, e := d.model, d.engine
	if args == nil {
		args = map[string]interface{}{}
	}

	switch op {
	case "findUnique", "findUniqueOrThrow":
		a, err := query.DecodeUniqueArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.findUnique(ctx, m, op, a)
		return singleRecord(m, row, proj, op == "findUniqueOrThrow", err)
	case "findFirst", "findFirstOrThrow":
		a, err := query.DecodeFindArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.findFirst(ctx, m, op, a)
		return singleRecord(m, row, proj, op == "findFirstOrThrow", err)
	case "findMany":
		a, err := query.DecodeFindArgs(m, args)
		if err != nil {
			return nil, err
		}
		rows, proj, err := e.findMany(ctx, m, op, a)
		if err != nil {
			return nil, err
		}
		return toRecords(m, rows, proj), nil
	case "create":
		a, err := query.DecodeCreateArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.create(ctx, m, op, a)
		return singleRecord(m, row, proj, false, err)
	case "createMany":
		a, err := query.DecodeCreateManyArgs(m, args)
		if err != nil {
			return nil, err
		}
		n, err := e.createMany(ctx, m, op, a)
		if err != nil {
			return nil, err
		}
		return BatchResult{Count: n}, nil
	case "createManyAndReturn":
		a, err := query.DecodeCreateManyArgs(m, args)
		if err != nil {
			return nil, err
		}
		rows, proj, err := e.createManyAndReturn(ctx, m, op, a)
		if err != nil {
			return nil, err
		}
		return toRecords(m, rows, proj), nil
	case "update":
		a, err := query.DecodeUpdateArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.update(ctx, m, op, a)
		return singleRecord(m, row, proj, false, err)
	case "updateMany":
		a, err := query.DecodeUpdateManyArgs(m, args)
		if err != nil {
			return nil, err
		}
		n, err := e.updateMany(ctx, m, op, a)
		if err != nil {
			return nil, err
		}
		return BatchResult{Count: n}, nil
	case "upsert":
		a, err := query.DecodeUpsertArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.upsert(ctx, m, op, a)
		return singleRecord(m, row, proj, false, err)
	case "delete":
		a, err := query.DecodeDeleteArgs(m, args)
		if err != nil {
			return nil, err
		}
		row, proj, err := e.delete(ctx, m, op, a)
		return singleRecord(m, row, proj, false, err)
	case "deleteMany":
		a, err := query.DecodeDeleteManyArgs(m, args)
		if err != nil {
			return nil, err
		}
		n, err := e.deleteMany(ctx, m, op, a)
		if err != nil {
			return nil, err
		}
		return BatchResult{Count: n}, nil
	case "count":
		a, err := query.DecodeCountArgs(m, args)
		if err != nil {
			return nil, err
		}
		if len(a.Fields) > 0 {
			return e.countFields(ctx, m, op, a)
		}
		return e.count(ctx, m, op, a)
	case "aggregate":
		a, err := query.DecodeAggregateArgs(m, args)
		if err != nil {
			return nil, err
		}
		return e.aggregate(ctx, m, op, a)
	case "groupBy":
		a, err := query.DecodeGroupByArgs(m, args)
		if err != nil {
			return nil, err
		}
		return e.groupBy(ctx, m, op, a)
	}
	return nil, appErrors.Validation("unknown operation %q on %s", op, m.Name)
}

func singleRecord(m *query.Model, row reflect.Value, proj query.Projection, orThrow bool, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if !row.IsValid() {
		if orThrow {
			return nil, notFound(m, "a query")
		}
		return nil, nil
	}
	return toRecord(m, row, proj), nil
}

func toRecords(m *query.Model, rows reflect.Value, proj query.Projection) []Record {
	out := make([]Record, rows.Len())
	for i := range out {
		out[i] = toRecord(m, rows.Index(i), proj)
	}
	return out
}

// toRecord projects a row struct, or a pointer to one, into a Record.
func toRecord(m *query.Model, row reflect.Value, proj query.Projection) Record {
	row = reflect.Indirect(row)
	rec := make(Record, len(proj.Scalars)+len(proj.Relations))
	for _, col := range proj.Scalars {
		rec[col] = columnValue(row, col)
	}
	for _, load := range proj.Relations {
		target := m.Target(load.Relation)
		nested, err := target.Project(load.Args.Select, load.Args.Include)
		if err != nil {
			continue
		}
		idx, _ := relationField(row.Type(), load.Relation.Name)
		field := row.FieldByIndex(idx)
		if load.Relation.Kind == query.ToOne {
			if field.IsNil() {
				rec[load.Relation.Name] = nil
			} else {
				rec[load.Relation.Name] = toRecord(target, field, nested)
			}
			continue
		}
		rec[load.Relation.Name] = toRecords(target, field, nested)
	}
	return rec
}
