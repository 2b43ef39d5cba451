package inventory

import (
	"context"
	"fmt"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
)

// ListWaste returns waste items newest first.
func (s *Service) ListWaste(ctx context.Context, f WasteFilter) ([]Waste, error) {
	q := datasvc.From(tableWaste).Order("created_at", true)
	if f.Category != "" {
		q = q.Where(datasvc.Eq("category", f.Category))
	}
	if f.Status != "" {
		q = q.Where(datasvc.Eq("status", f.Status))
	}
	if f.Search != "" {
		q = q.Where(datasvc.Contains("name", f.Search))
	}
	res, err := s.tables.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list waste: %w", err)
	}
	items := []Waste{}
	if err := datasvc.Decode(res.Rows, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateWaste validates and stores a waste item owned by actor.
func (s *Service) CreateWaste(ctx context.Context, actor auth.Identity, in NewWaste) (Waste, error) {
	in.CollectionDate = normalizeDate(in.CollectionDate)
	if err := s.check(in); err != nil {
		return Waste{}, err
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	row := datasvc.Row{
		"name":             in.Name,
		"category":         in.Category,
		"quantity":         *in.Quantity,
		"collection_date":  optional(in.CollectionDate),
		"status":           in.Status,
		"location":         optional(in.Location),
		"certificate_path": optional(in.CertificatePath),
	}
	var out Waste
	if err := s.create(ctx, wasteEntity, actor, row, &out); err != nil {
		return Waste{}, err
	}
	return out, nil
}

// UpdateWaste applies the supplied fields of p to the item.
func (s *Service) UpdateWaste(ctx context.Context, actor auth.Identity, id string, p WastePatch) (Waste, error) {
	if err := s.check(p); err != nil {
		return Waste{}, err
	}
	row := datasvc.Row{}
	setIf(row, "name", p.Name)
	setIf(row, "category", p.Category)
	setIf(row, "quantity", p.Quantity)
	setDate(row, "collection_date", p.CollectionDate)
	setIf(row, "status", p.Status)
	setIf(row, "location", p.Location)
	setIf(row, "certificate_path", p.CertificatePath)
	if v, ok := row["collection_date"].(string); ok {
		if err := s.validate.Var(v, "datetime=2006-01-02"); err != nil {
			return Waste{}, &ValidationError{Fields: []FieldError{{Field: "collection_date", Rule: "datetime"}}}
		}
	}

	var out Waste
	if err := s.update(ctx, wasteEntity, actor, id, row, &out); err != nil {
		return Waste{}, err
	}
	return out, nil
}

// DeleteWaste removes the item, recording its name as it was before removal.
func (s *Service) DeleteWaste(ctx context.Context, actor auth.Identity, id string) error {
	return s.delete(ctx, wasteEntity, actor, id)
}
