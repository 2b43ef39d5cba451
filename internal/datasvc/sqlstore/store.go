// Package sqlstore implements datasvc.Tables over database/sql, for running
// against a self-hosted PostgreSQL or a local SQLite file.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/ids"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ datasvc.Tables = (*Store)(nil)

// Open connects with the pool settings used in production.
func Open(driver, dsn string) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if d.numbered {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(15 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	} else {
		// SQLite allows a single writer; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	return New(db, d), nil
}

// New wraps an existing handle.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: time.Now}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: database not configured")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return s.wrap("ping", "", err)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, q datasvc.Query) (datasvc.Result, error) {
	t, err := lookup(q.Table)
	if err != nil {
		return datasvc.Result{}, err
	}
	var b builder
	b.dialect = s.dialect
	where, err := b.where(t, q.Filters)
	if err != nil {
		return datasvc.Result{}, err
	}

	var res datasvc.Result
	if q.Count {
		var n int
		stmt := "SELECT count(*) FROM " + q.Table + where
		if err := s.db.QueryRowContext(ctx, stmt, b.args...).Scan(&n); err != nil {
			return datasvc.Result{}, s.wrap("select", q.Table, err)
		}
		res.Count = &n
	}
	if q.Head {
		return res, nil
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = t.names()
	}
	for _, c := range cols {
		if !t.has(c) {
			return datasvc.Result{}, fmt.Errorf("sqlstore: unknown column %s.%s", q.Table, c)
		}
	}
	stmt := "SELECT " + strings.Join(cols, ", ") + " FROM " + q.Table + where
	if q.OrderBy != "" {
		if !t.has(q.OrderBy) {
			return datasvc.Result{}, fmt.Errorf("sqlstore: unknown column %s.%s", q.Table, q.OrderBy)
		}
		stmt += " ORDER BY " + q.OrderBy
		if q.Desc {
			stmt += " DESC"
		}
	}
	if q.Limit > 0 {
		stmt += " LIMIT " + strconv.Itoa(q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, stmt, b.args...)
	if err != nil {
		return datasvc.Result{}, s.wrap("select", q.Table, err)
	}
	res.Rows, err = scanRows(t, rows)
	if err != nil {
		return datasvc.Result{}, s.wrap("select", q.Table, err)
	}
	return res, nil
}

func (s *Store) Insert(ctx context.Context, tableName string, row datasvc.Row) (datasvc.Row, error) {
	t, err := lookup(tableName)
	if err != nil {
		return nil, err
	}
	values := make(datasvc.Row, len(row)+2)
	for k, v := range row {
		values[k] = v
	}
	if t.generated && values["id"] == nil {
		values["id"] = ids.New()
	}
	if t.stamped && values["created_at"] == nil {
		values["created_at"] = s.now().UTC()
	}
	cols := sortedKeys(values)

	b := builder{dialect: s.dialect}
	marks := make([]string, len(cols))
	for i, c := range cols {
		k, ok := t.kindOf(c)
		if !ok {
			return nil, fmt.Errorf("sqlstore: unknown column %s.%s", tableName, c)
		}
		arg, err := s.dialect.encode(k, values[c])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", tableName, c, err)
		}
		marks[i] = b.bind(arg)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		tableName, strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(t.names(), ", "))
	out, err := s.query(ctx, "insert", tableName, t, stmt, b.args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &datasvc.Error{Op: "insert", Table: tableName, Message: "no row returned"}
	}
	return out[0], nil
}

func (s *Store) Update(ctx context.Context, tableName string, patch datasvc.Row, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	t, err := lookup(tableName)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("sqlstore: empty update for %s", tableName)
	}
	b := builder{dialect: s.dialect}
	cols := sortedKeys(patch)
	sets := make([]string, len(cols))
	for i, c := range cols {
		k, ok := t.kindOf(c)
		if !ok {
			return nil, fmt.Errorf("sqlstore: unknown column %s.%s", tableName, c)
		}
		arg, err := s.dialect.encode(k, patch[c])
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", tableName, c, err)
		}
		sets[i] = c + " = " + b.bind(arg)
	}
	where, err := b.where(t, filters)
	if err != nil {
		return nil, err
	}
	stmt := "UPDATE " + tableName + " SET " + strings.Join(sets, ", ") + where +
		" RETURNING " + strings.Join(t.names(), ", ")
	return s.query(ctx, "update", tableName, t, stmt, b.args)
}

func (s *Store) Delete(ctx context.Context, tableName string, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	t, err := lookup(tableName)
	if err != nil {
		return nil, err
	}
	b := builder{dialect: s.dialect}
	where, err := b.where(t, filters)
	if err != nil {
		return nil, err
	}
	stmt := "DELETE FROM " + tableName + where + " RETURNING " + strings.Join(t.names(), ", ")
	return s.query(ctx, "delete", tableName, t, stmt, b.args)
}

func (s *Store) query(ctx context.Context, op, tableName string, t table, stmt string, args []any) ([]datasvc.Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, s.wrap(op, tableName, err)
	}
	out, err := scanRows(t, rows)
	if err != nil {
		return nil, s.wrap(op, tableName, err)
	}
	return out, nil
}

func (s *Store) wrap(op, tableName string, err error) error {
	return &datasvc.Error{Op: op, Table: tableName, Status: conflictStatus(err), Err: err}
}

func scanRows(t table, rows *sql.Rows) ([]datasvc.Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []datasvc.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(datasvc.Row, len(cols))
		for i, c := range cols {
			k, _ := t.kindOf(c)
			row[c] = decode(k, vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(len(b.args))
}

func (b *builder) where(t table, filters []datasvc.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if !t.has(f.Column) {
			return "", fmt.Errorf("sqlstore: unknown filter column %q", f.Column)
		}
		switch f.Op {
		case datasvc.OpEq:
			parts = append(parts, f.Column+" = "+b.bind(f.Value))
		case datasvc.OpLte:
			parts = append(parts, f.Column+" <= "+b.bind(f.Value))
		case datasvc.OpILike:
			parts = append(parts, f.Column+" "+b.dialect.likeOp+" "+b.bind(f.Value))
		case datasvc.OpNotNull:
			parts = append(parts, f.Column+" IS NOT NULL")
		case datasvc.OpIn:
			values, _ := f.Value.([]string)
			if len(values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			marks := make([]string, len(values))
			for i, v := range values {
				marks[i] = b.bind(v)
			}
			parts = append(parts, f.Column+" IN ("+strings.Join(marks, ", ")+")")
		default:
			return "", fmt.Errorf("sqlstore: unsupported operator %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func sortedKeys(r datasvc.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
