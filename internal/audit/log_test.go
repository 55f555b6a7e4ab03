package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutput(&buf)
	defer restore()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{UserID: "user-42", Role: auth.RoleClient, ClientID: "C"})

	if err := LogEvent(ctx, "resource.update", map[string]any{"kind": "salesAccounts"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.Bytes()
	if len(line) == 0 {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	checks := map[string]any{
		"type":       "audit",
		"event":      "resource.update",
		"request_id": "req-123",
		"user_id":    "user-42",
		"role":       "client",
		"client_id":  "C",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Fatalf("%s = %v, want %v", k, entry[k], want)
		}
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["kind"] != "salesAccounts" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
