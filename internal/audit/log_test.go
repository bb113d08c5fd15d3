package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/obs"
)

func TestLogEventIncludesPrincipalAndRequestID(t *testing.T) {
	logger := obs.Logger()
	origWriter := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(origWriter)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{
		UserID:    "user-9",
		SessionID: "sess-9",
	})

	if err := LogEvent(ctx, "auth.login", map[string]any{"email": "casey@example.com"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("audit line is not valid JSON: %v", err)
	}
	if entry["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-9" || entry["session_id"] != "sess-9" {
		t.Fatalf("principal missing from entry: %v", entry)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
