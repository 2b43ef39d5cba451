// Package supabase adapts the hosted data service SDKs to datasvc.Tables,
// auth.Verifier and storage.Signer.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"
	storage_go "github.com/supabase-community/storage-go"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/storage"
)

// Client holds one SDK client per service. Table and storage calls use the
// service role key; identity lookups use the anon key with the caller's token.
type Client struct {
	baseURL string
	timeout time.Duration
	now     func() time.Time

	rest    *postgrest.Client
	auth    gotrue.Client
	storage *storage_go.Client
}

var (
	_ datasvc.Tables = (*Client)(nil)
	_ auth.Verifier  = (*Client)(nil)
	_ storage.Signer = (*Client)(nil)
)

// Option configures Client.
type Option func(*Client)

// WithTimeout bounds every call to the data service (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(baseURL, serviceKey, anonKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("supabase: base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("supabase: base url: %w", err)
	}
	if serviceKey == "" || anonKey == "" {
		return nil, errors.New("supabase: service and anon keys are required")
	}

	service := map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	}
	rest, err := postgrest.NewClientWithError(baseURL+"/rest/v1", "public", service)
	if err != nil {
		return nil, fmt.Errorf("supabase: rest client: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		timeout: 10 * time.Second,
		now:     time.Now,
		rest:    rest,
		auth:    gotrue.New("", anonKey).WithCustomGoTrueURL(baseURL + "/auth/v1"),
		storage: storage_go.NewClient(baseURL+"/storage/v1", serviceKey, map[string]string{"apikey": serviceKey}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Select(ctx context.Context, q datasvc.Query) (datasvc.Result, error) {
	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ",")
	}
	count := ""
	if q.Count {
		count = "exact"
	}
	fb := c.rest.From(q.Table).Select(columns, count, q.Head)
	if err := applyFilters(fb, q.Filters); err != nil {
		return datasvc.Result{}, err
	}
	if q.OrderBy != "" {
		fb = fb.Order(q.OrderBy, &postgrest.OrderOpts{Ascending: !q.Desc})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}

	out, err := call(ctx, c.timeout, func() (executed, error) {
		body, n, err := fb.Execute()
		return executed{body: body, count: int(n)}, err
	})
	if err != nil {
		return datasvc.Result{}, restError("select", q.Table, err)
	}

	var res datasvc.Result
	if q.Count {
		n := out.count
		res.Count = &n
	}
	if q.Head {
		return res, nil
	}
	if err := json.Unmarshal(out.body, &res.Rows); err != nil {
		return datasvc.Result{}, &datasvc.Error{Op: "select", Table: q.Table, Status: http.StatusBadGateway, Message: "decode response", Err: err}
	}
	return res, nil
}

func (c *Client) Insert(ctx context.Context, table string, row datasvc.Row) (datasvc.Row, error) {
	fb := c.rest.From(table).Insert(row, false, "", "representation", "")
	rows, err := c.rows(ctx, "insert", table, fb)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &datasvc.Error{Op: "insert", Table: table, Status: http.StatusBadGateway, Message: "no row returned"}
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, table string, patch datasvc.Row, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	fb := c.rest.From(table).Update(patch, "representation", "")
	if err := applyFilters(fb, filters); err != nil {
		return nil, err
	}
	return c.rows(ctx, "update", table, fb)
}

func (c *Client) Delete(ctx context.Context, table string, filters ...datasvc.Filter) ([]datasvc.Row, error) {
	fb := c.rest.From(table).Delete("representation", "")
	if err := applyFilters(fb, filters); err != nil {
		return nil, err
	}
	return c.rows(ctx, "delete", table, fb)
}

// Ping checks the identity service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := call(ctx, c.timeout, func() (struct{}, error) {
		_, err := c.auth.HealthCheck()
		return struct{}{}, err
	})
	if err != nil {
		return &datasvc.Error{Op: "ping", Table: "auth", Err: err}
	}
	return nil
}

type executed struct {
	body  []byte
	count int
}

func (c *Client) rows(ctx context.Context, op, table string, fb *postgrest.FilterBuilder) ([]datasvc.Row, error) {
	out, err := call(ctx, c.timeout, func() (executed, error) {
		body, _, err := fb.Execute()
		return executed{body: body}, err
	})
	if err != nil {
		return nil, restError(op, table, err)
	}
	var rows []datasvc.Row
	if err := json.Unmarshal(out.body, &rows); err != nil {
		return nil, &datasvc.Error{Op: op, Table: table, Status: http.StatusBadGateway, Message: "decode response", Err: err}
	}
	return rows, nil
}

func applyFilters(fb *postgrest.FilterBuilder, filters []datasvc.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case datasvc.OpEq:
			fb.Eq(f.Column, fmt.Sprint(f.Value))
		case datasvc.OpLte:
			fb.Lte(f.Column, fmt.Sprint(f.Value))
		case datasvc.OpILike:
			fb.Ilike(f.Column, fmt.Sprint(f.Value))
		case datasvc.OpNotNull:
			fb.Not(f.Column, "is", "null")
		case datasvc.OpIn:
			values, _ := f.Value.([]string)
			fb.In(f.Column, values)
		default:
			return fmt.Errorf("supabase: unsupported operator %q", f.Op)
		}
	}
	return nil
}

// call runs fn until it returns, ctx ends or timeout passes. The SDK calls
// take no context; an abandoned call finishes in the background and its
// result is dropped.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// restErrorPattern matches the "(<code>) <message>" errors of the REST client.
var restErrorPattern = regexp.MustCompile(`^\(([^)]*)\) (.*)$`)

// restError converts a REST client error into *datasvc.Error. Transport
// failures keep Status 0.
func restError(op, table string, err error) error {
	de := &datasvc.Error{Op: op, Table: table, Err: err}
	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return de
	}
	de.Status = http.StatusBadGateway
	if m := restErrorPattern.FindStringSubmatch(err.Error()); m != nil {
		de.Status = statusForCode(m[1])
		de.Message = m[2]
	}
	return de
}

// statusForCode maps PostgreSQL and PostgREST error codes onto HTTP statuses.
func statusForCode(code string) int {
	switch {
	case code == "23505", code == "23503":
		return http.StatusConflict
	case code == "42501":
		return http.StatusForbidden
	case strings.HasPrefix(code, "PGRST"), strings.HasPrefix(code, "22"), strings.HasPrefix(code, "42"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
