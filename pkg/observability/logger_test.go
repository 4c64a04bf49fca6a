package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	entry := make(map[string]interface{})
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message logged at info level")
	}

	logger.Info("info message")
	entry := decodeEntry(t, &buf)
	if entry["level"] != "INFO" || entry["msg"] != "info message" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"method": "POST",
		"status": 201,
	}).WithError(errors.New("boom")).Warn("request completed")

	entry := decodeEntry(t, &buf)
	if entry["method"] != "POST" || entry["error"] != "boom" {
		t.Errorf("entry = %v", entry)
	}
}

func TestFromContext_EnrichesRequestScope(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserTracking(ctx)

	// Authentication happens on a derived context further down the chain;
	// the slot makes the name visible to the original one.
	WithUsername(ctx, "alice")
	if got := Username(ctx); got != "alice" {
		t.Fatalf("Username = %q, want alice", got)
	}

	FromContext(ctx).Info("request completed")
	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["username"] != "alice" {
		t.Errorf("username = %v, want alice", entry["username"])
	}
}

func TestWithUsername_WithoutTrackingSlot(t *testing.T) {
	ctx := WithUsername(context.Background(), "carol")
	if got := Username(ctx); got != "carol" {
		t.Errorf("Username = %q, want carol", got)
	}
}
