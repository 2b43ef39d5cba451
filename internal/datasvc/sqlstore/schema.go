package sqlstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type kind int

const (
	kindText kind = iota
	kindFloat
	kindDate
	kindTime
	kindJSON
)

type column struct {
	name string
	kind kind
}

type table struct {
	columns []column
	// generated marks tables whose id and created_at are stamped on insert.
	generated bool
	stamped   bool
}

func (t table) has(name string) bool {
	_, ok := t.kindOf(name)
	return ok
}

func (t table) kindOf(name string) (kind, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c.kind, true
		}
	}
	return 0, false
}

func (t table) names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

func text(name string) column { return column{name: name, kind: kindText} }

var schema = map[string]table{
	"waste": {generated: true, stamped: true, columns: []column{
		text("id"), text("name"), text("category"), {"quantity", kindFloat},
		{"collection_date", kindDate}, text("status"), text("location"),
		text("certificate_path"), text("user_id"), {"created_at", kindTime},
	}},
	"chemical": {generated: true, stamped: true, columns: []column{
		text("id"), text("name"), text("category"), {"quantity", kindFloat},
		{"expiration_date", kindDate}, text("location"), text("sds_link"), text("sds_path"),
		{"reorder_level", kindFloat}, text("user_id"), {"created_at", kindTime},
	}},
	"profiles": {stamped: true, columns: []column{
		text("id"), text("email"), text("role_id"), {"created_at", kindTime},
	}},
	"roles": {generated: true, columns: []column{
		text("id"), text("name"), text("description"),
	}},
	"permissions": {generated: true, columns: []column{
		text("id"), text("name"), text("description"),
	}},
	"role_permissions": {columns: []column{
		text("role_id"), text("permission_id"),
	}},
	"activity_log": {generated: true, stamped: true, columns: []column{
		text("id"), text("user_id"), text("user_email"), text("action"),
		{"details", kindJSON}, {"created_at", kindTime},
	}},
}

func lookup(name string) (table, error) {
	t, ok := schema[name]
	if !ok {
		return table{}, fmt.Errorf("sqlstore: unknown table %q", name)
	}
	return t, nil
}

// timeLayout has a fixed-width fraction so text timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// encode converts a row value into a driver argument.
func (d Dialect) encode(k kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case kindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case kindTime:
		if t, ok := v.(time.Time); ok {
			if d.numbered {
				return t.UTC(), nil
			}
			return t.UTC().Format(timeLayout), nil
		}
	}
	return v, nil
}

// decode normalizes a scanned value so both drivers produce the same JSON shapes.
func decode(k kind, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch k {
	case kindFloat:
		switch n := v.(type) {
		case int64:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	case kindDate:
		switch t := v.(type) {
		case time.Time:
			return t.Format("2006-01-02")
		case string:
			if len(t) >= 10 {
				return t[:10]
			}
		}
	case kindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(time.RFC3339Nano)
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed.UTC().Format(time.RFC3339Nano)
			}
		}
	case kindJSON:
		if s, ok := v.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
	}
	return v
}
