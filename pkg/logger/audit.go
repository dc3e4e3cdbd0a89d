package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is the log-line shape of a security audit event.
type AuditEvent struct {
	ID        string
	EventType string
	UserID    string
	TenantID  string
	IPAddress string
	UserAgent string
	Success   bool
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// AuditLogger writes security audit events as structured log lines.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogSecurityEvent emits one line per event: Info for successes, Warn otherwise.
func (al *AuditLogger) LogSecurityEvent(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("user_id", event.UserID),
		slog.Bool("success", event.Success),
		slog.String("timestamp", event.Timestamp.UTC().Format(time.RFC3339Nano)),
	}

	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
