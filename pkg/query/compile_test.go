package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	users := &Model{
		Name:  "users",
		Table: "users",
		Fields: []Field{
			{Name: "id", Type: TypeInt, Default: DefaultAutoIncrement},
			{Name: "name", Type: TypeString, Nullable: true},
			{Name: "email", Type: TypeString},
		},
		PrimaryKey: NewUniqueKey("id"),
		Relations: []Relation{
			{Name: "presence", Target: "presence", Kind: ToMany, Fields: []string{"id"}, References: []string{"user_id"}},
		},
	}
	presence := &Model{
		Name:  "presence",
		Table: "presence",
		Fields: []Field{
			{Name: "id", Type: TypeInt, Default: DefaultAutoIncrement},
			{Name: "user_id", Type: TypeInt},
			{Name: "lecture_id", Type: TypeInt},
			{Name: "is_present", Type: TypeBool},
			{Name: "created_at", Type: TypeDateTime, Default: DefaultNow},
			{Name: "updated_at", Type: TypeDateTime, Default: DefaultUpdatedAt},
		},
		PrimaryKey: NewUniqueKey("id"),
		Uniques:    []UniqueKey{NewUniqueKey("user_id", "lecture_id")},
		Relations: []Relation{
			{Name: "users", Target: "users", Kind: ToOne, Fields: []string{"user_id"}, References: []string{"id"}},
		},
	}
	metric := &Model{
		Name:  "database_metric",
		Table: "database_metric",
		Fields: []Field{
			{Name: "id", Type: TypeInt, Default: DefaultAutoIncrement},
			{Name: "query_time", Type: TypeInt},
			{Name: "row_count", Type: TypeInt},
			{Name: "timestamp", Type: TypeDateTime, Default: DefaultNow},
		},
		PrimaryKey: NewUniqueKey("id"),
	}
	s, err := NewSchema(users, presence, metric)
	require.NoError(t, err)
	return s
}

func model(t *testing.T, s *Schema, name string) *Model {
	t.Helper()
	m, ok := s.Model(name)
	require.True(t, ok)
	return m
}

func TestNewSchemaRejectsUnknownTarget(t *testing.T) {
	_, err := NewSchema(&Model{
		Name:       "lecture",
		Table:      "lecture",
		Fields:     []Field{{Name: "id", Type: TypeInt}},
		PrimaryKey: NewUniqueKey("id"),
		Relations:  []Relation{{Name: "teacher", Target: "teacher", Fields: []string{"id"}, References: []string{"id"}}},
	})
	require.Error(t, err)
}

func TestBuildSelectEqualityAndNull(t *testing.T) {
	users := model(t, testSchema(t), "users")

	stmt, err := BuildSelect(users, SelectPlan{Where: Where{"email": "a@example.com", "name": nil}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "users" WHERE "name" IS NULL AND "email" = $1 LIMIT 1`, stmt.SQL)
	assert.Equal(t, []interface{}{"a@example.com"}, stmt.Args)
}

func TestBuildSelectIgnoresUndefined(t *testing.T) {
	users := model(t, testSchema(t), "users")
	var missing *string

	stmt, err := BuildSelect(users, SelectPlan{Where: Where{"name": Undefined, "email": missing}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "users"`, stmt.SQL)
	assert.Empty(t, stmt.Args)
}

func TestBuildSelectLogicalOperators(t *testing.T) {
	users := model(t, testSchema(t), "users")

	w := Where{
		KeyOr:  []Where{{"email": Contains("x").Insensitive()}, {"id": In(1, 2)}},
		KeyNot: Where{"name": StartsWith("a_")},
	}
	stmt, err := BuildSelect(users, SelectPlan{Columns: []string{"id"}, Where: w, OrderBy: []Order{Desc("id").WithNulls(NullsLast)}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("email" ILIKE $1 OR "id" IN ($2, $3)) AND NOT ("name" LIKE $4) ORDER BY "id" DESC NULLS LAST`, stmt.SQL)
	assert.Equal(t, []interface{}{"%x%", int64(1), int64(2), `a\_%`}, stmt.Args)
}

func TestCompileWhereEdgeCases(t *testing.T) {
	users := model(t, testSchema(t), "users")

	stmt, err := CompileWhere(users, Where{"id": In()})
	require.NoError(t, err)
	assert.Equal(t, "FALSE", stmt.SQL)

	stmt, err = CompileWhere(users, Where{KeyOr: []Where{}})
	require.NoError(t, err)
	assert.Equal(t, "FALSE", stmt.SQL)

	stmt, err = CompileWhere(users, Where{"name": Ne(nil), "id": Ops{Gte(1), Lt(10)}})
	require.NoError(t, err)
	assert.Equal(t, `"id" >= $1 AND "id" < $2 AND "name" IS NOT NULL`, stmt.SQL)

	stmt, err = CompileWhere(users, Where{"name": Equals("Ana").Insensitive()})
	require.NoError(t, err)
	assert.Equal(t, `LOWER("name") = LOWER($1)`, stmt.SQL)

	stmt, err = CompileWhere(users, Where{"id": In([]int{4, 5})})
	require.NoError(t, err)
	assert.Equal(t, `"id" IN ($1, $2)`, stmt.SQL)
}

func TestCompileWhereValidation(t *testing.T) {
	s := testSchema(t)
	users := model(t, s, "users")
	presence := model(t, s, "presence")

	cases := []struct {
		name string
		m    *Model
		w    Where
	}{
		{name: "unknown field", m: users, w: Where{"nickname": "x"}},
		{name: "contains on int", m: users, w: Where{"id": Contains("1")}},
		{name: "wrong type", m: users, w: Where{"id": "one"}},
		{name: "lt on bool", m: presence, w: Where{"is_present": Lt(true)}},
		{name: "gt null", m: users, w: Where{"id": Gt(nil)}},
		{name: "some on to-one", m: presence, w: Where{"users": Some(Where{"id": 1})}},
		{name: "is on to-many", m: users, w: Where{"presence": Is(Where{"id": 1})}},
		{name: "insensitive on int", m: users, w: Where{"id": Equals(1).Insensitive()}},
		{name: "aggregate outside having", m: users, w: Where{"id": Having(AggCount, Gt(1))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileWhere(tc.m, tc.w)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err))
		})
	}
}

func TestCompileRelationFilters(t *testing.T) {
	s := testSchema(t)
	users := model(t, s, "users")
	presence := model(t, s, "presence")

	stmt, err := CompileWhere(users, Where{"presence": Some(Where{"is_present": false})})
	require.NoError(t, err)
	assert.Equal(t, `EXISTS (SELECT 1 FROM "presence" WHERE "presence"."user_id" = "users"."id" AND ("is_present" = $1))`, stmt.SQL)
	assert.Equal(t, []interface{}{false}, stmt.Args)

	stmt, err = CompileWhere(users, Where{"presence": Every(Where{"is_present": true})})
	require.NoError(t, err)
	assert.Equal(t, `NOT EXISTS (SELECT 1 FROM "presence" WHERE "presence"."user_id" = "users"."id" AND NOT ("is_present" = $1))`, stmt.SQL)

	stmt, err = CompileWhere(users, Where{"presence": None(nil)})
	require.NoError(t, err)
	assert.Equal(t, `NOT EXISTS (SELECT 1 FROM "presence" WHERE "presence"."user_id" = "users"."id")`, stmt.SQL)

	stmt, err = CompileWhere(presence, Where{"users": Where{"email": EndsWith("@school.id")}})
	require.NoError(t, err)
	assert.Equal(t, `EXISTS (SELECT 1 FROM "users" WHERE "users"."id" = "presence"."user_id" AND ("email" LIKE $1))`, stmt.SQL)
	assert.Equal(t, []interface{}{"%@school.id"}, stmt.Args)
}

func TestCompileCompoundKey(t *testing.T) {
	presence := model(t, testSchema(t), "presence")

	stmt, err := CompileWhere(presence, Where{"user_id_lecture_id": Where{"user_id": 1, "lecture_id": 2}})
	require.NoError(t, err)
	assert.Equal(t, `"user_id" = $1 AND "lecture_id" = $2`, stmt.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(2)}, stmt.Args)

	_, err = CompileWhere(presence, Where{"user_id_lecture_id": Where{"user_id": 1}})
	require.Error(t, err)
}

func TestUniqueSelectorOf(t *testing.T) {
	presence := model(t, testSchema(t), "presence")

	sel, err := presence.UniqueSelectorOf(Where{"user_id_lecture_id": Where{"user_id": 1, "lecture_id": 2}})
	require.NoError(t, err)
	assert.Equal(t, "user_id_lecture_id", sel.Key.Name)
	assert.True(t, sel.Exact)

	sel, err = presence.UniqueSelectorOf(Where{"id": Equals(3), "is_present": true})
	require.NoError(t, err)
	assert.Equal(t, "id", sel.Key.Name)
	assert.False(t, sel.Exact)

	_, err = presence.UniqueSelectorOf(Where{"user_id": 1})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))

	_, err = presence.UniqueSelectorOf(Where{"id": Gt(1)})
	require.Error(t, err)
}

func TestBuildInsertMultiRow(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	first, err := metric.PlanWrite(Data{"query_time": 12, "row_count": 3}, ModeCreateMany)
	require.NoError(t, err)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	second, err := metric.PlanWrite(Data{"query_time": 7, "row_count": 1, "timestamp": ts}, ModeCreateMany)
	require.NoError(t, err)

	stmt, err := BuildInsert(metric, InsertPlan{Rows: []WritePlan{first, second}, SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "database_metric" ("query_time", "row_count", "timestamp") VALUES ($1, $2, DEFAULT), ($3, $4, $5) ON CONFLICT DO NOTHING`, stmt.SQL)
	assert.Equal(t, []interface{}{int64(12), int64(3), int64(7), int64(1), ts}, stmt.Args)
}

func TestBuildUpdateArithmetic(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	plan, err := metric.PlanWrite(Data{"query_time": Increment(5), "row_count": Divide(2)}, ModeUpdate)
	require.NoError(t, err)

	stmt, err := BuildUpdate(metric, UpdatePlan{Set: plan, Where: Where{"id": 9}, Returning: []string{"id", "query_time"}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "database_metric" SET "query_time" = "query_time" + $1, "row_count" = "row_count" / $2 WHERE "id" = $3 RETURNING "id", "query_time"`, stmt.SQL)
	assert.Equal(t, []interface{}{int64(5), int64(2), int64(9)}, stmt.Args)
}

func TestBuildUpsert(t *testing.T) {
	presence := model(t, testSchema(t), "presence")
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	create, err := presence.PlanWrite(Data{"user_id": 1, "lecture_id": 2, "is_present": true}, ModeCreate)
	require.NoError(t, err)
	create.Stamp(presence, now)
	update, err := presence.PlanWrite(Data{"is_present": false}, ModeUpdate)
	require.NoError(t, err)
	update.Stamp(presence, now)

	key, _ := presence.CompoundKey("user_id_lecture_id")
	stmt, err := BuildUpsert(presence, create, key, update, presence.ScalarNames())
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "presence" ("user_id", "lecture_id", "is_present", "updated_at") VALUES ($1, $2, $3, $4) ON CONFLICT ("user_id", "lecture_id") DO UPDATE SET "is_present" = $5, "updated_at" = $6 RETURNING "id", "user_id", "lecture_id", "is_present", "created_at", "updated_at"`, stmt.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(2), true, now, false, now}, stmt.Args)
}

func TestBuildDeleteWithoutFilter(t *testing.T) {
	users := model(t, testSchema(t), "users")

	stmt, err := BuildDelete(users, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, stmt.SQL)
}

func TestBuildAggregateWindow(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	stmt, err := BuildAggregate(metric, AggregateSelect{Count: []string{AllRows}, Max: []string{"query_time"}}, WindowPlan{
		Where:   Where{"row_count": Gt(0)},
		OrderBy: []Order{Asc("id")},
		Limit:   10,
		Offset:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) AS "_count._all", MAX("query_time") AS "_max.query_time" FROM (SELECT * FROM "database_metric" WHERE "row_count" > $1 ORDER BY "id" ASC LIMIT 10 OFFSET 5) AS "sub"`, stmt.SQL)

	_, err = BuildAggregate(metric, AggregateSelect{}, WindowPlan{})
	require.Error(t, err)

	users := model(t, testSchema(t), "users")
	_, err = BuildAggregate(users, AggregateSelect{Avg: []string{"email"}}, WindowPlan{})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestBuildGroupBy(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	stmt, err := BuildGroupBy(metric, GroupPlan{
		By:      []string{"row_count"},
		Having:  Where{"query_time": Having(AggAvg, Gt(10))},
		OrderBy: []Order{Desc("row_count")},
		Select:  AggregateSelect{Count: []string{AllRows}, Avg: []string{"query_time"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "row_count", COUNT(*) AS "_count._all", AVG("query_time")::float8 AS "_avg.query_time" FROM "database_metric" GROUP BY "row_count" HAVING AVG("query_time")::float8 > $1 ORDER BY "row_count" DESC`, stmt.SQL)
	assert.Equal(t, []interface{}{float64(10)}, stmt.Args)
}

func TestBuildGroupByOrderByCountAll(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	stmt, err := BuildGroupBy(metric, GroupPlan{
		By:      []string{"row_count"},
		OrderBy: []Order{{Field: AllRows, Sort: SortDesc, Aggregate: AggCount}},
		Limit:   2,
		Select:  AggregateSelect{Count: []string{AllRows}},
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, ` GROUP BY "row_count" ORDER BY COUNT(*) DESC`)

	_, err = BuildGroupBy(metric, GroupPlan{
		By:      []string{"row_count"},
		OrderBy: []Order{{Field: AllRows, Sort: SortDesc, Aggregate: AggSum}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestBuildGroupByValidation(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	cases := []struct {
		name string
		plan GroupPlan
	}{
		{name: "empty by", plan: GroupPlan{}},
		{name: "having field outside by", plan: GroupPlan{By: []string{"row_count"}, Having: Where{"query_time": Gt(5)}}},
		{name: "having inside NOT outside by", plan: GroupPlan{By: []string{"row_count"}, Having: Where{KeyNot: Where{"id": 1}}}},
		{name: "orderBy outside by", plan: GroupPlan{By: []string{"row_count"}, OrderBy: []Order{Asc("query_time")}}},
		{name: "take without orderBy", plan: GroupPlan{By: []string{"row_count"}, Limit: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildGroupBy(metric, tc.plan)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err))
		})
	}

	_, err := BuildGroupBy(metric, GroupPlan{
		By:      []string{"row_count"},
		OrderBy: []Order{{Field: "query_time", Sort: SortDesc, Aggregate: AggSum}},
		Limit:   3,
	})
	require.NoError(t, err)
}

func TestPlanWriteValidation(t *testing.T) {
	s := testSchema(t)
	users := model(t, s, "users")
	presence := model(t, s, "presence")

	_, err := users.PlanWrite(Data{"email": nil}, ModeCreate)
	assert.True(t, appErrors.IsValidation(err))

	_, err = users.PlanWrite(Data{"nickname": "x"}, ModeCreate)
	assert.True(t, appErrors.IsValidation(err))

	_, err = presence.PlanWrite(Data{"lecture_id": Increment(1)}, ModeCreate)
	assert.True(t, appErrors.IsValidation(err))

	_, err = presence.PlanWrite(Data{"is_present": Increment(1)}, ModeUpdate)
	assert.True(t, appErrors.IsValidation(err))

	_, err = presence.PlanWrite(Data{"lecture_id": Divide(0)}, ModeUpdate)
	assert.True(t, appErrors.IsValidation(err))

	_, err = users.PlanWrite(Data{"presence": NestedCreate(Data{"lecture_id": 1})}, ModeCreateMany)
	assert.True(t, appErrors.IsValidation(err))

	plan, err := users.PlanWrite(Data{"email": "a@b.c", "name": Undefined}, ModeCreate)
	require.NoError(t, err)
	assert.Empty(t, users.MissingRequired(plan))
	assert.False(t, plan.Has("name"))

	plan, err = presence.PlanWrite(Data{"is_present": true}, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "lecture_id"}, presence.MissingRequired(plan))
}

func TestProject(t *testing.T) {
	s := testSchema(t)
	users := model(t, s, "users")

	_, err := users.Project(Select{"id": true}, Include{"presence": true})
	assert.True(t, appErrors.IsValidation(err))

	p, err := users.Project(Select{"email": true, "id": true, "presence": &FindArgs{Take: Take(2)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, p.Scalars)
	require.Len(t, p.Relations, 1)
	assert.Equal(t, 2, *p.Relations[0].Args.Take)

	p, err = users.Project(nil, Include{"presence": true})
	require.NoError(t, err)
	assert.Equal(t, users.ScalarNames(), p.Scalars)

	_, err = users.Project(nil, Include{"email": true})
	assert.True(t, appErrors.IsValidation(err))

	_, err = users.Project(Select{"id": false}, nil)
	assert.True(t, appErrors.IsValidation(err))
}
