package query

import (
	"encoding/json"
	"time"
)

// SortOrder is the direction of an ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// NullsOrder places NULLs before or after other values.
type NullsOrder string

const (
	NullsFirst NullsOrder = "first"
	NullsLast  NullsOrder = "last"
)

// Order sorts by a column. Aggregate is only valid in groupBy orderings.
type Order struct {
	Field     string
	Sort      SortOrder
	Nulls     NullsOrder
	Aggregate AggregateFunc
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field, Sort: SortAsc} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Sort: SortDesc} }

// WithNulls sets the NULL placement.
func (o Order) WithNulls(n NullsOrder) Order {
	o.Nulls = n
	return o
}

// Flipped reverses the direction and the NULL placement.
func (o Order) Flipped() Order {
	if o.Sort == SortDesc {
		o.Sort = SortAsc
	} else {
		o.Sort = SortDesc
	}
	switch o.Nulls {
	case NullsFirst:
		o.Nulls = NullsLast
	case NullsLast:
		o.Nulls = NullsFirst
	}
	return o
}

// Take returns a pointer for the Take fields.
func Take(n int) *int { return &n }

// Select lists the scalars and relations to return. Values are true/false
// for scalars and true, FindArgs or *FindArgs for relations.
type Select map[string]interface{}

// Include returns every scalar plus the named relations. Values are true,
// FindArgs or *FindArgs.
type Include map[string]interface{}

// CacheStrategy opts a scalar read into the result cache.
type CacheStrategy struct {
	TTL time.Duration
}

// FindArgs drives findMany/findFirst and relation sub-queries.
type FindArgs struct {
	Where    Where
	OrderBy  []Order
	Cursor   Where
	Skip     int
	Take     *int
	Distinct []string
	Select   Select
	Include  Include
	Cache    *CacheStrategy
}

// UniqueArgs drives findUnique and findUniqueOrThrow.
type UniqueArgs struct {
	Where   Where
	Select  Select
	Include Include
	Cache   *CacheStrategy
}

type CreateArgs struct {
	Data    Data
	Select  Select
	Include Include
}

type CreateManyArgs struct {
	Data           []Data
	SkipDuplicates bool
	// Select and Include apply to CreateManyAndReturn only.
	Select  Select
	Include Include
}

type UpdateArgs struct {
	Where   Where
	Data    Data
	Select  Select
	Include Include
}

type UpdateManyArgs struct {
	Where Where
	Data  Data
}

type UpsertArgs struct {
	Where   Where
	Create  Data
	Update  Data
	Select  Select
	Include Include
}

type DeleteArgs struct {
	Where   Where
	Select  Select
	Include Include
}

type DeleteManyArgs struct {
	Where Where
}

// CountArgs drives count. Fields lists columns for a per-field breakdown;
// "_all" counts rows.
type CountArgs struct {
	Where   Where
	OrderBy []Order
	Cursor  Where
	Skip    int
	Take    *int
	Fields  []string
}

// AllRows is the count selector for every row.
const AllRows = "_all"

// AggregateSelect names the fields each aggregate runs over.
type AggregateSelect struct {
	Count []string
	Avg   []string
	Sum   []string
	Min   []string
	Max   []string
}

func (a AggregateSelect) empty() bool {
	return len(a.Count)+len(a.Avg)+len(a.Sum)+len(a.Min)+len(a.Max) == 0
}

type AggregateArgs struct {
	Where   Where
	OrderBy []Order
	Cursor  Where
	Skip    int
	Take    *int
	AggregateSelect
}

type GroupByArgs struct {
	By      []string
	Where   Where
	Having  Where
	OrderBy []Order
	Skip    int
	Take    *int
	AggregateSelect
}

// AggregateResult holds one value per requested aggregate and field.
type AggregateResult struct {
	Count map[string]int64       `json:"_count,omitempty"`
	Avg   map[string]*float64    `json:"_avg,omitempty"`
	Sum   map[string]interface{} `json:"_sum,omitempty"`
	Min   map[string]interface{} `json:"_min,omitempty"`
	Max   map[string]interface{} `json:"_max,omitempty"`
}

// GroupRow is one groupBy result: the by values plus the aggregates.
type GroupRow struct {
	Keys map[string]interface{}
	AggregateResult
}

// MarshalJSON flattens the group keys next to the aggregate objects.
func (g GroupRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(g.Keys)+5)
	for k, v := range g.Keys {
		out[k] = v
	}
	if g.Count != nil {
		out[string(AggCount)] = g.Count
	}
	if g.Avg != nil {
		out[string(AggAvg)] = g.Avg
	}
	if g.Sum != nil {
		out[string(AggSum)] = g.Sum
	}
	if g.Min != nil {
		out[string(AggMin)] = g.Min
	}
	if g.Max != nil {
		out[string(AggMax)] = g.Max
	}
	return json.Marshal(out)
}
