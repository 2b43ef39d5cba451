package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"wastechem.org/internal/auth"
	"wastechem.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLogger(&buf, "info", "json", "test")

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: "user-42", Email: "u@example.com"})

	if err := LogEvent(ctx, logger, "Created Waste", map[string]any{"name": "Solvent A"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "Created Waste" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" || entry["user_email"] != "u@example.com" {
		t.Fatalf("unexpected user: %v %v", entry["user_id"], entry["user_email"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["name"] != "Solvent A" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	logger := obs.NewLogger(&bytes.Buffer{}, "info", "json", "test")
	if err := LogEvent(context.Background(), logger, "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
