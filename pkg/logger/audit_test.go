package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogSecurityEvent(context.Background(), AuditEvent{
		ID:        "evt-1",
		EventType: "login_failure",
		UserID:    "user-1",
		TenantID:  "tenant-a",
		IPAddress: "10.0.0.1",
		Success:   false,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:  map[string]interface{}{"reason": "invalid_credentials"},
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "audit", line["msg"])
	assert.Equal(t, "login_failure", line["event_type"])
	assert.Equal(t, "tenant-a", line["tenant_id"])
	assert.Equal(t, "10.0.0.1", line["ip_address"])
	assert.NotContains(t, line, "user_agent")
	assert.Equal(t, "invalid_credentials", line["metadata"].(map[string]interface{})["reason"])
}

func TestAuditLogger_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogSecurityEvent(context.Background(), AuditEvent{ID: "evt-2", EventType: "login_success", UserID: "u", Success: true})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
}
