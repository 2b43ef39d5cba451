package inventory

import (
	"context"
	"fmt"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
)

// ListChemicals returns chemicals newest first.
func (s *Service) ListChemicals(ctx context.Context, f ChemicalFilter) ([]Chemical, error) {
	q := datasvc.From(tableChemical).Order("created_at", true)
	if f.Category != "" {
		q = q.Where(datasvc.Eq("category", f.Category))
	}
	if f.Search != "" {
		q = q.Where(datasvc.Contains("name", f.Search))
	}
	if f.ExpiringSoon {
		q = q.Where(datasvc.Lte("expiration_date", s.ExpiryThreshold()))
	}
	res, err := s.tables.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list chemicals: %w", err)
	}
	items := []Chemical{}
	if err := datasvc.Decode(res.Rows, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateChemical validates and stores a chemical owned by actor.
func (s *Service) CreateChemical(ctx context.Context, actor auth.Identity, in NewChemical) (Chemical, error) {
	in.ExpirationDate = normalizeDate(in.ExpirationDate)
	if err := s.check(in); err != nil {
		return Chemical{}, err
	}
	row := datasvc.Row{
		"name":            in.Name,
		"category":        in.Category,
		"quantity":        *in.Quantity,
		"expiration_date": optional(in.ExpirationDate),
		"location":        optional(in.Location),
		"sds_link":        optional(in.SDSLink),
		"sds_path":        optional(in.SDSPath),
		"reorder_level":   optional(in.ReorderLevel),
	}
	var out Chemical
	if err := s.create(ctx, chemicalEntity, actor, row, &out); err != nil {
		return Chemical{}, err
	}
	return out, nil
}

// UpdateChemical applies the supplied fields of p to the chemical.
func (s *Service) UpdateChemical(ctx context.Context, actor auth.Identity, id string, p ChemicalPatch) (Chemical, error) {
	if err := s.check(p); err != nil {
		return Chemical{}, err
	}
	row := datasvc.Row{}
	setIf(row, "name", p.Name)
	setIf(row, "category", p.Category)
	setIf(row, "quantity", p.Quantity)
	setDate(row, "expiration_date", p.ExpirationDate)
	setIf(row, "location", p.Location)
	setIf(row, "sds_link", p.SDSLink)
	setIf(row, "sds_path", p.SDSPath)
	setIf(row, "reorder_level", p.ReorderLevel)
	if v, ok := row["expiration_date"].(string); ok {
		if err := s.validate.Var(v, "datetime=2006-01-02"); err != nil {
			return Chemical{}, &ValidationError{Fields: []FieldError{{Field: "expiration_date", Rule: "datetime"}}}
		}
	}

	var out Chemical
	if err := s.update(ctx, chemicalEntity, actor, id, row, &out); err != nil {
		return Chemical{}, err
	}
	return out, nil
}

// DeleteChemical removes the chemical, recording its name as it was before removal.
func (s *Service) DeleteChemical(ctx context.Context, actor auth.Identity, id string) error {
	return s.delete(ctx, chemicalEntity, actor, id)
}
