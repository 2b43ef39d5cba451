// Package inventory implements waste and chemical records, the dashboard
// counters and the derived notification feed.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
)

const (
	tableWaste    = "waste"
	tableChemical = "chemical"

	// ExpiryWindow is how far ahead an expiration date counts as expiring soon.
	ExpiryWindow = 30 * 24 * time.Hour
)

// Recorder receives an activity entry after each mutation.
type Recorder interface {
	Record(ctx context.Context, actor auth.Identity, action string, details map[string]any) bool
}

// Service runs inventory operations against the data service.
type Service struct {
	tables   datasvc.Tables
	recorder Recorder
	validate *validator.Validate
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the clock used for expiry thresholds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(tables datasvc.Tables, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		tables:   tables,
		recorder: recorder,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpiryThreshold is the last date (inclusive) that counts as expiring soon.
func (s *Service) ExpiryThreshold() string {
	return s.now().UTC().Add(ExpiryWindow).Format(dateLayout)
}

// entity captures what differs between the waste and chemical tables.
type entity struct {
	table string
	label string
}

var (
	wasteEntity    = entity{table: tableWaste, label: "Waste"}
	chemicalEntity = entity{table: tableChemical, label: "Chemical"}
)

func (s *Service) create(ctx context.Context, e entity, actor auth.Identity, row datasvc.Row, dst any) error {
	row["user_id"] = actor.ID
	created, err := s.tables.Insert(ctx, e.table, row)
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.table, err)
	}
	if err := datasvc.Decode(created, dst); err != nil {
		return err
	}
	s.record(ctx, actor, "Created "+e.label, row["name"], created["id"])
	return nil
}

func (s *Service) update(ctx context.Context, e entity, actor auth.Identity, id string, patch datasvc.Row, dst any) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrNoFields)
	}
	rows, err := s.tables.Update(ctx, e.table, patch, datasvc.Eq("id", id))
	if err != nil {
		return fmt.Errorf("update %s: %w", e.table, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, e.table, id)
	}
	if err := datasvc.Decode(rows[0], dst); err != nil {
		return err
	}
	name, ok := patch["name"]
	if !ok {
		name = rows[0]["name"]
	}
	s.record(ctx, actor, "Updated "+e.label, name, id)
	return nil
}

func (s *Service) delete(ctx context.Context, e entity, actor auth.Identity, id string) error {
	row, err := datasvc.Single(ctx, s.tables, datasvc.From(e.table).Select("name").Where(datasvc.Eq("id", id)))
	if errors.Is(err, datasvc.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, e.table, id)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", e.table, err)
	}
	if _, err := s.tables.Delete(ctx, e.table, datasvc.Eq("id", id)); err != nil {
		return fmt.Errorf("delete %s: %w", e.table, err)
	}
	s.record(ctx, actor, "Deleted "+e.label, row["name"], id)
	return nil
}

func (s *Service) record(ctx context.Context, actor auth.Identity, action string, name, id any) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, actor, action, map[string]any{
		"name": name,
		"id":   id,
	})
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// normalizeDate maps an empty or blank date to nil so it is stored as null.
func normalizeDate(d *string) *string {
	if d == nil || strings.TrimSpace(*d) == "" {
		return nil
	}
	v := strings.TrimSpace(*d)
	return &v
}

// setDate writes a patch date: absent stays absent, empty becomes null.
func setDate(row datasvc.Row, column string, d *string) {
	if d == nil {
		return
	}
	if nd := normalizeDate(d); nd != nil {
		row[column] = *nd
		return
	}
	row[column] = nil
}

func setIf[T any](row datasvc.Row, column string, v *T) {
	if v != nil {
		row[column] = *v
	}
}

func optional[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
