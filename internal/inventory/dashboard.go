package inventory

import (
	"context"
	"fmt"
	"net/url"

	"wastechem.org/internal/datasvc"
)

// Stats computes the four dashboard counters. Each is an independent exact count.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		dst *int
		q   datasvc.Query
	}{
		{&st.TotalWaste, datasvc.From(tableWaste)},
		{&st.TotalChemicals, datasvc.From(tableChemical)},
		{&st.ExpiringChemicals, datasvc.From(tableChemical).Where(datasvc.Lte("expiration_date", s.ExpiryThreshold()))},
		{&st.PendingWaste, datasvc.From(tableWaste).Where(datasvc.Eq("status", StatusPending))},
	}
	for _, c := range counts {
		res, err := s.tables.Select(ctx, c.q.Select("id").CountOnly())
		if err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.q.Table, err)
		}
		*c.dst = res.CountOrZero()
	}
	return st, nil
}

// Notifications builds the alert feed: expiring chemicals, then low stock,
// then pending waste.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	out := []Notification{}

	expiring, err := s.tables.Select(ctx, datasvc.From(tableChemical).
		Select("id", "name").
		Where(datasvc.Lte("expiration_date", s.ExpiryThreshold())))
	if err != nil {
		return nil, fmt.Errorf("expiring chemicals: %w", err)
	}
	for _, r := range expiring.Rows {
		out = append(out, notification("exp", "expiring", "is expiring soon.", "/chemicals", r))
	}

	stocked, err := s.tables.Select(ctx, datasvc.From(tableChemical).
		Select("id", "name", "quantity", "reorder_level").
		Where(datasvc.NotNull("reorder_level")))
	if err != nil {
		return nil, fmt.Errorf("low stock chemicals: %w", err)
	}
	var levels []Chemical
	if err := datasvc.Decode(stocked.Rows, &levels); err != nil {
		return nil, err
	}
	for i, c := range levels {
		if c.ReorderLevel != nil && c.Quantity <= *c.ReorderLevel {
			out = append(out, notification("low", "low_stock", "is low on stock.", "/chemicals", stocked.Rows[i]))
		}
	}

	pending, err := s.tables.Select(ctx, datasvc.From(tableWaste).
		Select("id", "name").
		Where(datasvc.Eq("status", StatusPending)))
	if err != nil {
		return nil, fmt.Errorf("pending waste: %w", err)
	}
	for _, r := range pending.Rows {
		out = append(out, notification("pending", "pending_waste", "is pending collection.", "/waste", r))
	}
	return out, nil
}

func notification(prefix, kind, suffix, page string, r datasvc.Row) Notification {
	name := fmt.Sprint(r["name"])
	return Notification{
		ID:      prefix + "-" + string(datasvc.KeyOf(r["id"])),
		Type:    kind,
		Message: fmt.Sprintf("'%s' %s", name, suffix),
		Link:    page + "?search=" + url.QueryEscape(name),
	}
}
