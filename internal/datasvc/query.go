// Package datasvc describes the table interface of the external data service.
// Implementations live in the supabase and sqlstore subpackages.
package datasvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Row is a single record keyed by column name.
type Row map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq      Op = "eq"
	OpILike   Op = "ilike"
	OpLte     Op = "lte"
	OpNotNull Op = "not_null"
	OpIn      Op = "in"
)

// Filter restricts a query to rows matching Column Op Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }
func NotNull(column string) Filter        { return Filter{Column: column, Op: OpNotNull} }
func ILike(column, pattern string) Filter { return Filter{Column: column, Op: OpILike, Value: pattern} }
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Contains returns a case-insensitive substring filter.
func Contains(column, term string) Filter { return ILike(column, "%"+term+"%") }

// Query describes a select.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
	// Count requests an exact row count alongside the rows.
	Count bool
	// Head skips the rows and returns only the count.
	Head bool
}

// From starts a query over table.
func From(table string) Query { return Query{Table: table} }

func (q Query) Select(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) Order(column string, desc bool) Query {
	q.OrderBy, q.Desc = column, desc
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// CountOnly asks for the exact count and no rows.
func (q Query) CountOnly() Query {
	q.Count, q.Head = true, true
	return q
}

// Result is the outcome of a select. Count is nil unless requested.
type Result struct {
	Rows  []Row
	Count *int
}

// CountOrZero returns the exact count, or 0 when the service did not report one.
func (r Result) CountOrZero() int {
	if r.Count == nil {
		return 0
	}
	return *r.Count
}

// Tables is the query/command surface of the data service.
type Tables interface {
	Select(ctx context.Context, q Query) (Result, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error)
	Delete(ctx context.Context, table string, filters ...Filter) ([]Row, error)
	Ping(ctx context.Context) error
}

// Single runs q and returns its only row, or ErrNotFound.
func Single(ctx context.Context, t Tables, q Query) (Row, error) {
	res, err := t.Select(ctx, q.Take(1))
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	return res.Rows[0], nil
}

// Decode converts rows into dst (a pointer to a slice or struct) through their JSON form.
func Decode(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// Key is a row identifier. It accepts JSON strings and numbers so tables keyed
// by integer sequences decode the same way as text or uuid keys.
type Key string

func (k *Key) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode key: %w", err)
	}
	*k = Key(n.String())
	return nil
}

// KeyOf renders a raw row value as a Key; nil becomes "".
func KeyOf(v any) Key {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Key(t)
	case float64:
		return Key(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return Key(fmt.Sprint(t))
	}
}
