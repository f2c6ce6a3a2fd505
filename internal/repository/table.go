package repository

import (
	"context"
	"reflect"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// BatchResult reports how many rows a bulk write touched.
type BatchResult struct {
	Count int64 `json:"count"`
}

// Table implements the generic CRUD contract for one model whose rows scan
// into T.
type Table[T any] struct {
	engine *engine
	model  *query.Model
}

func newTable[T any](e *engine, name string) *Table[T] {
	m := mustModel(name)
	if got := reflect.TypeOf((*T)(nil)).Elem(); got != rowType(m) {
		panic("repository: " + got.String() + " does not scan " + m.Name)
	}
	return &Table[T]{engine: e, model: m}
}

// Model returns the descriptor the table compiles against.
func (t *Table[T]) Model() *query.Model { return t.model }

func one[T any](v reflect.Value) *T {
	if !v.IsValid() {
		return nil
	}
	return v.Interface().(*T)
}

func many[T any](v reflect.Value) []T {
	return v.Interface().([]T)
}

// FindUnique returns the row selected by a unique key, or nil when none
// matches.
func (t *Table[T]) FindUnique(ctx context.Context, args query.UniqueArgs) (*T, error) {
	row, _, err := t.engine.findUnique(ctx, t.model, "findUnique", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

// FindUniqueOrThrow is FindUnique with a NOT_FOUND error on a miss.
func (t *Table[T]) FindUniqueOrThrow(ctx context.Context, args query.UniqueArgs) (*T, error) {
	row, _, err := t.engine.findUnique(ctx, t.model, "findUniqueOrThrow", args)
	if err != nil {
		return nil, err
	}
	if !row.IsValid() {
		return nil, notFound(t.model, "a query")
	}
	return one[T](row), nil
}

// FindFirst returns the first matching row in order, or nil.
func (t *Table[T]) FindFirst(ctx context.Context, args query.FindArgs) (*T, error) {
	row, _, err := t.engine.findFirst(ctx, t.model, "findFirst", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

func (t *Table[T]) FindFirstOrThrow(ctx context.Context, args query.FindArgs) (*T, error) {
	row, _, err := t.engine.findFirst(ctx, t.model, "findFirstOrThrow", args)
	if err != nil {
		return nil, err
	}
	if !row.IsValid() {
		return nil, notFound(t.model, "a query")
	}
	return one[T](row), nil
}

// FindMany never returns a nil slice.
func (t *Table[T]) FindMany(ctx context.Context, args query.FindArgs) ([]T, error) {
	rows, _, err := t.engine.findMany(ctx, t.model, "findMany", args)
	if err != nil {
		return nil, err
	}
	return many[T](rows), nil
}

func (t *Table[T]) Create(ctx context.Context, args query.CreateArgs) (*T, error) {
	row, _, err := t.engine.create(ctx, t.model, "create", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

// CreateMany inserts every row in one statement.
func (t *Table[T]) CreateMany(ctx context.Context, args query.CreateManyArgs) (BatchResult, error) {
	n, err := t.engine.createMany(ctx, t.model, "createMany", args)
	return BatchResult{Count: n}, err
}

func (t *Table[T]) CreateManyAndReturn(ctx context.Context, args query.CreateManyArgs) ([]T, error) {
	rows, _, err := t.engine.createManyAndReturn(ctx, t.model, "createManyAndReturn", args)
	if err != nil {
		return nil, err
	}
	return many[T](rows), nil
}

func (t *Table[T]) Update(ctx context.Context, args query.UpdateArgs) (*T, error) {
	row, _, err := t.engine.update(ctx, t.model, "update", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

func (t *Table[T]) UpdateMany(ctx context.Context, args query.UpdateManyArgs) (BatchResult, error) {
	n, err := t.engine.updateMany(ctx, t.model, "updateMany", args)
	return BatchResult{Count: n}, err
}

// Upsert updates the row selected by args.Where or creates it.
func (t *Table[T]) Upsert(ctx context.Context, args query.UpsertArgs) (*T, error) {
	row, _, err := t.engine.upsert(ctx, t.model, "upsert", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

// Delete returns the deleted row.
func (t *Table[T]) Delete(ctx context.Context, args query.DeleteArgs) (*T, error) {
	row, _, err := t.engine.delete(ctx, t.model, "delete", args)
	if err != nil {
		return nil, err
	}
	return one[T](row), nil
}

func (t *Table[T]) DeleteMany(ctx context.Context, args query.DeleteManyArgs) (BatchResult, error) {
	n, err := t.engine.deleteMany(ctx, t.model, "deleteMany", args)
	return BatchResult{Count: n}, err
}

func (t *Table[T]) Count(ctx context.Context, args query.CountArgs) (int64, error) {
	if len(args.Fields) > 0 {
		return 0, appErrors.Validation("use CountFields for a per-field count on %s", t.model.Name)
	}
	return t.engine.count(ctx, t.model, "count", args)
}

// CountFields counts non-null values of each field in args.Fields.
func (t *Table[T]) CountFields(ctx context.Context, args query.CountArgs) (map[string]int64, error) {
	if len(args.Fields) == 0 {
		args.Fields = []string{query.AllRows}
	}
	return t.engine.countFields(ctx, t.model, "count", args)
}

func (t *Table[T]) Aggregate(ctx context.Context, args query.AggregateArgs) (query.AggregateResult, error) {
	return t.engine.aggregate(ctx, t.model, "aggregate", args)
}

func (t *Table[T]) GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.GroupRow, error) {
	return t.engine.groupBy(ctx, t.model, "groupBy", args)
}
