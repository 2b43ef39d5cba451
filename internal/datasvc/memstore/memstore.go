// Package memstore is an in-process implementation of datasvc.Tables used by
// tests and local demos.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/ids"
)

// createdLayout has a fixed-width fraction so created_at sorts lexically.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps rows per table in memory.
type Store struct {
	mu     sync.Mutex
	tables map[string][]datasvc.Row
	now    func() time.Time

	// FailOn, when set, is consulted before each call; a non-nil error is returned as-is.
	FailOn func(op, table string) error
}

var _ datasvc.Tables = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: make(map[string][]datasvc.Row),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for created_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Seed inserts rows verbatim, without id or timestamp stamping.
func (s *Store) Seed(table string, rows ...datasvc.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

// Rows returns a copy of every row in table in insertion order.
func (s *Store) Rows(table string) []datasvc.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datasvc.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

func (s *Store) fail(op, table string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op, table)
}

func (s *Store) Select(_ context.Context, q datasvc.Query) (datasvc.Result, error) {
	if err := s.fail("select", q.Table); err != nil {
		return datasvc.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []datasvc.Row
	for _, r := range s.tables[q.Table] {
		ok, err := matchAll(r, q.Filters)
		if err != nil {
			return datasvc.Result{}, err
		}
		if ok {
			matched = append(matched, r)
		}
	}
	var res datasvc.Result
	if q.Count {
		n := len(matched)
		res.Count = &n
	}
	if q.Head {
		return res, nil
	}
	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	res.Rows = make([]datasvc.Row, 0, len(matched))
	for _, r := range matched {
		res.Rows = append(res.Rows, project(r, q.Columns))
	}
	return res, nil
}

func (s *Store) Insert(_ context.Context, table string, row datasvc.Row) (datasvc.Row, error) {
	if err := s.fail("insert", table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := clone(row)
	if _, ok := r["id"]; !ok {
		r["id"] = ids.New()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = s.now().Format(createdLayout)
	}
	s.tables[table] = append(s.tables[table], r)
	return clone(r), nil
}

func (s *Store) Update(_ context.Context, table string, patch datasvc.Row, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	if err := s.fail("update", table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datasvc.Row
	for _, r := range s.tables[table] {
		ok, err := matchAll(r, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, table string, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	if err := s.fail("delete", table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept, removed []datasvc.Row
	for _, r := range s.tables[table] {
		ok, err := matchAll(r, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	s.tables[table] = kept
	return removed, nil
}

func (s *Store) Ping(context.Context) error {
	return s.fail("ping", "")
}

func matchAll(r datasvc.Row, filters []datasvc.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := match(r[f.Column], f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(v any, f datasvc.Filter) (bool, error) {
	switch f.Op {
	case datasvc.OpEq:
		return v != nil && fmt.Sprint(v) == fmt.Sprint(f.Value), nil
	case datasvc.OpNotNull:
		return v != nil, nil
	case datasvc.OpLte:
		return v != nil && compare(v, f.Value) <= 0, nil
	case datasvc.OpIn:
		values, _ := f.Value.([]string)
		for _, want := range values {
			if v != nil && fmt.Sprint(v) == want {
				return true, nil
			}
		}
		return false, nil
	case datasvc.OpILike:
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		re, err := likePattern(fmt.Sprint(f.Value))
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	default:
		return false, fmt.Errorf("memstore: unsupported operator %q", f.Op)
	}
}

func likePattern(p string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, part := range strings.Split(p, "%") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	expr := strings.TrimSuffix(b.String(), ".*") + "$"
	return regexp.Compile(expr)
}

func compare(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func project(r datasvc.Row, columns []string) datasvc.Row {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return clone(r)
	}
	out := make(datasvc.Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

func clone(r datasvc.Row) datasvc.Row {
	out := make(datasvc.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
