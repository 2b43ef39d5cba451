package memstore

import (
	"context"
	"testing"
	"time"

	"wastechem.org/internal/datasvc"
)

func TestSelectFiltersOrderAndCount(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	for _, name := range []string{"Acetone", "acetic acid", "Benzene"} {
		if _, err := s.Insert(ctx, "chemical", datasvc.Row{"name": name, "quantity": 1.0}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	res, err := s.Select(ctx, datasvc.From("chemical").Where(datasvc.Contains("name", "ACE")).Order("created_at", true).Take(10))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 2 || res.Rows[0]["name"] != "acetic acid" {
		t.Fatalf("unexpected rows: %v", res.Rows)
	}

	head, err := s.Select(ctx, datasvc.From("chemical").CountOnly())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if head.CountOrZero() != 3 || head.Rows != nil {
		t.Fatalf("unexpected count result: %+v", head)
	}
}

func TestLteAndNotNull(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("chemical",
		datasvc.Row{"id": "a", "expiration_date": "2025-01-10", "reorder_level": 5.0},
		datasvc.Row{"id": "b", "expiration_date": "2025-02-10", "reorder_level": nil},
		datasvc.Row{"id": "c", "expiration_date": nil},
	)

	res, _ := s.Select(ctx, datasvc.From("chemical").Where(datasvc.Lte("expiration_date", "2025-01-10")))
	if len(res.Rows) != 1 || res.Rows[0]["id"] != "a" {
		t.Fatalf("lte should be inclusive and skip nulls: %v", res.Rows)
	}
	res, _ = s.Select(ctx, datasvc.From("chemical").Where(datasvc.NotNull("reorder_level")))
	if len(res.Rows) != 1 {
		t.Fatalf("not null filter: %v", res.Rows)
	}
}

func TestSingleNotFound(t *testing.T) {
	_, err := datasvc.Single(context.Background(), New(), datasvc.From("waste").Where(datasvc.Eq("id", "missing")))
	if err != datasvc.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
