package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
)

const (
	table = "activity_log"

	DefaultLimit = 50
	MaxLimit     = 1000
)

// Entry is one activity_log row.
type Entry struct {
	ID        datasvc.Key    `json:"id"`
	UserID    string         `json:"user_id"`
	UserEmail string         `json:"user_email"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// Recorder appends activity_log rows. Write failures are logged and dropped so
// they never fail the operation being recorded.
type Recorder struct {
	tables datasvc.Tables
	logger *slog.Logger
}

func NewRecorder(tables datasvc.Tables, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{tables: tables, logger: logger}
}

// Record stores an entry for actor. It reports whether the row was written.
func (r *Recorder) Record(ctx context.Context, actor auth.Identity, action string, details map[string]any) bool {
	if details == nil {
		details = map[string]any{}
	}
	_ = LogEvent(ctx, r.logger, action, details)

	_, err := r.tables.Insert(ctx, table, datasvc.Row{
		"user_id":    actor.ID,
		"user_email": actor.Email,
		"action":     action,
		"details":    details,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "activity log write failed",
			"action", action,
			"user_id", actor.ID,
			"request_id", RequestIDFromContext(ctx),
			"error", err,
		)
		return false
	}
	return true
}

// List returns the newest entries first. limit <= 0 means DefaultLimit.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	res, err := r.tables.Select(ctx, datasvc.From(table).Order("created_at", true).Take(limit))
	if err != nil {
		return nil, fmt.Errorf("list activity log: %w", err)
	}
	entries := []Entry{}
	if err := datasvc.Decode(res.Rows, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
