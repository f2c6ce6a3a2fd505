package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

func decode(t *testing.T, doc string) map[string]interface{} {
	t.Helper()
	obj, err := DecodeJSON([]byte(doc))
	require.NoError(t, err)
	return obj
}

func TestDecodeWhereCompiles(t *testing.T) {
	users := model(t, testSchema(t), "users")

	doc := decode(t, `{"where": {
		"email": {"contains": "ana", "mode": "insensitive"},
		"name": null,
		"OR": [{"id": 1}, {"id": {"in": [2, 3]}}]
	}}`)
	w, err := DecodeWhere(users, doc["where"])
	require.NoError(t, err)

	stmt, err := CompileWhere(users, w)
	require.NoError(t, err)
	assert.Equal(t, `"name" IS NULL AND "email" ILIKE $1 AND ("id" = $2 OR "id" IN ($3, $4))`, stmt.SQL)
	assert.Equal(t, []interface{}{"%ana%", int64(1), int64(2), int64(3)}, stmt.Args)
}

func TestDecodeWhereNestedNot(t *testing.T) {
	users := model(t, testSchema(t), "users")

	doc := decode(t, `{"where": {"id": {"not": {"in": [7]}}}}`)
	w, err := DecodeWhere(users, doc["where"])
	require.NoError(t, err)

	stmt, err := CompileWhere(users, w)
	require.NoError(t, err)
	assert.Equal(t, `NOT ("id" IN ($1))`, stmt.SQL)
}

func TestDecodeWhereRejects(t *testing.T) {
	s := testSchema(t)
	users := model(t, s, "users")

	cases := map[string]string{
		"unknown key":           `{"where": {"nickname": "x"}}`,
		"aggregate in where":    `{"where": {"id": {"_count": {"gt": 1}}}}`,
		"unknown operator":      `{"where": {"id": {"between": [1, 2]}}}`,
		"list as scalar filter": `{"where": {"id": [1, 2]}}`,
		"to-many without op":    `{"where": {"presence": {"is_present": true}}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeWhere(users, decode(t, doc)["where"])
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err))
		})
	}
}

func TestDecodeHavingGroupBy(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	doc := decode(t, `{"having": {"query_time": {"_avg": {"gt": 10}}, "row_count": {"gte": 1}}}`)
	having, err := DecodeHaving(metric, doc["having"])
	require.NoError(t, err)

	stmt, err := BuildGroupBy(metric, GroupPlan{By: []string{"row_count"}, Having: having})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "row_count" FROM "database_metric" GROUP BY "row_count" HAVING AVG("query_time")::float8 > $1 AND "row_count" >= $2`, stmt.SQL)
	assert.Equal(t, []interface{}{float64(10), int64(1)}, stmt.Args)
}

func TestDecodeDataUpdateOperators(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	d, err := DecodeData(metric, decode(t, `{"data": {"query_time": {"increment": 5}, "row_count": 3}}`)["data"])
	require.NoError(t, err)
	plan, err := metric.PlanWrite(d, ModeUpdate)
	require.NoError(t, err)

	stmt, err := BuildUpdate(metric, UpdatePlan{Set: plan, Where: Where{"id": 1}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "database_metric" SET "query_time" = "query_time" + $1, "row_count" = $2 WHERE "id" = $3`, stmt.SQL)
	assert.Equal(t, []interface{}{int64(5), int64(3), int64(1)}, stmt.Args)

	_, err = DecodeData(metric, decode(t, `{"data": {"query_time": {"power": 2}}}`)["data"])
	assert.True(t, appErrors.IsValidation(err))
}

func TestDecodeDataNestedCreate(t *testing.T) {
	users := model(t, testSchema(t), "users")

	d, err := DecodeData(users, decode(t, `{"data": {"email": "a@school.id", "presence": {"create": [{"lecture_id": 1, "is_present": true}], "connect": {"id": 4}}}}`)["data"])
	require.NoError(t, err)
	nw, ok := d["presence"].(NestedWrite)
	require.True(t, ok)
	require.Len(t, nw.Create, 1)
	require.Len(t, nw.Connect, 1)
	assert.Equal(t, true, nw.Create[0]["is_present"])
}

func TestDecodeOrderBy(t *testing.T) {
	users := model(t, testSchema(t), "users")

	orders, err := DecodeOrderBy(users, decode(t, `{"orderBy": [{"id": "desc"}, {"name": {"sort": "asc", "nulls": "first"}}]}`)["orderBy"])
	require.NoError(t, err)
	assert.Equal(t, []Order{Desc("id"), Asc("name").WithNulls(NullsFirst)}, orders)

	_, err = DecodeOrderBy(users, decode(t, `{"orderBy": {"id": "sideways"}}`)["orderBy"])
	assert.True(t, appErrors.IsValidation(err))
}

func TestDecodeGroupByArgs(t *testing.T) {
	metric := model(t, testSchema(t), "database_metric")

	a, err := DecodeGroupByArgs(metric, decode(t, `{
		"by": ["row_count"],
		"_count": {"_all": true},
		"_avg": {"query_time": true},
		"orderBy": {"_count": {"row_count": "desc"}},
		"take": 5
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"row_count"}, a.By)
	assert.Equal(t, []string{AllRows}, a.Count)
	assert.Equal(t, []string{"query_time"}, a.Avg)
	assert.Equal(t, []Order{{Field: "row_count", Sort: SortDesc, Aggregate: AggCount}}, a.OrderBy)
	require.NotNil(t, a.Take)
	assert.Equal(t, 5, *a.Take)
}

func TestDecodeFindArgs(t *testing.T) {
	users := model(t, testSchema(t), "users")

	a, err := DecodeFindArgs(users, decode(t, `{
		"where": {"email": {"endsWith": "@school.id"}},
		"skip": 2,
		"take": -3,
		"distinct": "email",
		"include": {"presence": {"take": 1}},
		"cacheStrategy": {"ttl": 60}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Skip)
	assert.Equal(t, -3, *a.Take)
	assert.Equal(t, []string{"email"}, a.Distinct)
	assert.Equal(t, time.Minute, a.Cache.TTL)
	nested, ok := a.Include["presence"].(*FindArgs)
	require.True(t, ok)
	assert.Equal(t, 1, *nested.Take)

	_, err = DecodeFindArgs(users, decode(t, `{"limit": 5}`))
	assert.True(t, appErrors.IsValidation(err))

	_, err = DecodeFindArgs(users, decode(t, `{"cacheStrategy": {"ttl": 0}}`))
	assert.True(t, appErrors.IsValidation(err))
}

func TestDecodeCountArgs(t *testing.T) {
	users := model(t, testSchema(t), "users")

	a, err := DecodeCountArgs(users, decode(t, `{"select": true}`))
	require.NoError(t, err)
	assert.Equal(t, []string{AllRows}, a.Fields)

	a, err = DecodeCountArgs(users, decode(t, `{"select": {"_all": true, "name": true, "email": false}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{AllRows, "name"}, a.Fields)
}

func TestDecodeJSON(t *testing.T) {
	obj, err := DecodeJSON([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, obj)

	_, err = DecodeJSON([]byte(`[1, 2]`))
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}
