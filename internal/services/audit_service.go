package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/logger"
	"github.com/google/uuid"
)

const (
	auditEventsKeyPrefix = "audit:events:"
	defaultEventLimit    = 50
)

// AuditConfig controls the per-user event list.
type AuditConfig struct {
	RealTimeMonitoring bool
	EventCapPerUser    int
	Retention          time.Duration
}

// AuditService is the security audit trail.
// Every event goes to the structured log; with real-time monitoring enabled
// it is also appended to a capped per-user list in the cache. The list update
// is read-modify-write, so concurrent writers for one user can lose an event.
type AuditService struct {
	cache    cache.Cache
	monitor  *SuspiciousActivityMonitor
	auditLog *logger.AuditLogger
	config   AuditConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuditService creates a new AuditService. monitor may be nil.
func NewAuditService(c cache.Cache, monitor *SuspiciousActivityMonitor, config AuditConfig, log *slog.Logger) *AuditService {
	return &AuditService{
		cache:    c,
		monitor:  monitor,
		auditLog: logger.NewAuditLogger(log),
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

// LogEvent records a security event. Only a missing event type or user id
// is reported; storage problems are logged and swallowed.
func (s *AuditService) LogEvent(ctx context.Context, eventType models.SecurityEventType, userID string, details models.EventDetails) error {
	if eventType == "" {
		return models.NewRequiredError("event_type")
	}
	if strings.TrimSpace(userID) == "" {
		return models.NewRequiredError("user_id")
	}

	event := s.record(ctx, eventType, userID, details)

	if eventType == models.SecurityEventLoginFailure && s.monitor != nil && event.SourceIP != "" {
		s.correlate(ctx, event)
	}
	return nil
}

// LogLoginEvent records a login success or failure.
func (s *AuditService) LogLoginEvent(ctx context.Context, userID string, success bool, failureReason string, details models.EventDetails) error {
	eventType := models.SecurityEventLoginSuccess
	extra := details.Extra.Clone()
	if !success {
		eventType = models.SecurityEventLoginFailure
		if failureReason != "" {
			extra["failure_reason"] = failureReason
		}
	}
	details.Extra = extra
	return s.LogEvent(ctx, eventType, userID, details)
}

// LogPasswordChangeEvent records a password change. method is e.g. "reset".
func (s *AuditService) LogPasswordChangeEvent(ctx context.Context, userID string, success bool, method string, details models.EventDetails) error {
	eventType := models.SecurityEventPasswordChangeSuccess
	if !success {
		eventType = models.SecurityEventPasswordChangeFailure
	}
	extra := details.Extra.Clone()
	if method != "" {
		extra["method"] = method
	}
	details.Extra = extra
	return s.LogEvent(ctx, eventType, userID, details)
}

// LogAccountLockoutEvent records that an account was locked.
func (s *AuditService) LogAccountLockoutEvent(ctx context.Context, userID string, lockedUntil time.Time, attempts int, details models.EventDetails) error {
	extra := details.Extra.Clone()
	extra["locked_until"] = lockedUntil.UTC().Format(time.RFC3339)
	if attempts > 0 {
		extra["failed_attempts"] = attempts
	}
	details.Extra = extra
	return s.LogEvent(ctx, models.SecurityEventAccountLocked, userID, details)
}

// LogTwoFactorEvent records a second-factor verification outcome.
func (s *AuditService) LogTwoFactorEvent(ctx context.Context, userID string, success bool, method string, details models.EventDetails) error {
	eventType := models.SecurityEventTwoFactorSuccess
	if !success {
		eventType = models.SecurityEventTwoFactorFailure
	}
	extra := details.Extra.Clone()
	if method != "" {
		extra["method"] = method
	}
	details.Extra = extra
	return s.LogEvent(ctx, eventType, userID, details)
}

// GetEvents returns the user's events that match q, newest first.
// Missing data and read failures both yield an empty list.
func (s *AuditService) GetEvents(ctx context.Context, userID string, q models.EventQuery) ([]*models.SecurityAuditEvent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.NewRequiredError("user_id")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}

	stored, err := s.loadEvents(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read audit events",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return []*models.SecurityAuditEvent{}, nil
	}

	events := make([]*models.SecurityAuditEvent, 0, len(stored))
	for _, e := range stored {
		if q.Matches(e) {
			events = append(events, e)
		}
	}
	sortNewestFirst(events)

	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// record builds the event, logs it and appends it to the user's list.
func (s *AuditService) record(ctx context.Context, eventType models.SecurityEventType, userID string, details models.EventDetails) *models.SecurityAuditEvent {
	event := &models.SecurityAuditEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  details.TenantID,
		Timestamp: s.now().UTC(),
		SourceIP:  details.SourceIP,
		UserAgent: details.UserAgent,
		Extra:     details.Extra.Clone(),
	}

	s.auditLog.LogSecurityEvent(ctx, logger.AuditEvent{
		ID:        event.ID,
		EventType: string(event.EventType),
		UserID:    event.UserID,
		TenantID:  event.TenantID,
		IPAddress: event.SourceIP,
		UserAgent: event.UserAgent,
		Success:   !isAdverseEvent(event.EventType),
		Timestamp: event.Timestamp,
		Metadata:  event.Extra,
	})

	if s.config.RealTimeMonitoring {
		if err := s.appendEvent(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist audit event",
				slog.String("event_id", event.ID),
				slog.String("event_type", string(event.EventType)),
				slog.Any("error", err))
		}
	}
	return event
}

func (s *AuditService) correlate(ctx context.Context, failure *models.SecurityAuditEvent) {
	alert, err := s.monitor.Observe(ctx, failure.SourceIP, failure.Timestamp)
	if err != nil {
		s.logger.WarnContext(ctx, "suspicious activity check failed",
			slog.String("source_ip", failure.SourceIP),
			slog.Any("error", err))
		return
	}
	if alert == nil {
		return
	}

	s.record(ctx, models.SecurityEventSuspiciousActivity, failure.UserID, models.EventDetails{
		TenantID:  failure.TenantID,
		SourceIP:  alert.SourceIP,
		UserAgent: failure.UserAgent,
		Extra: models.AuditMetadata{
			"failure_count":  alert.Failures,
			"window_minutes": int(alert.Window / time.Minute),
		},
	})
}

// appendEvent re-sorts the list, keeps the newest EventCapPerUser entries
// and rewrites it with the retention TTL.
func (s *AuditService) appendEvent(ctx context.Context, event *models.SecurityAuditEvent) error {
	events, err := s.loadEvents(ctx, event.UserID)
	if err != nil {
		return err
	}

	events = append(events, event)
	sortNewestFirst(events)
	if s.config.EventCapPerUser > 0 && len(events) > s.config.EventCapPerUser {
		events = events[:s.config.EventCapPerUser]
	}

	return s.cache.Set(ctx, auditEventsKeyPrefix+event.UserID, events, s.config.Retention)
}

func (s *AuditService) loadEvents(ctx context.Context, userID string) ([]*models.SecurityAuditEvent, error) {
	var events []*models.SecurityAuditEvent
	if _, err := s.cache.Get(ctx, auditEventsKeyPrefix+userID, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func sortNewestFirst(events []*models.SecurityAuditEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

// isAdverseEvent decides the log level of an event.
func isAdverseEvent(t models.SecurityEventType) bool {
	switch t {
	case models.SecurityEventLoginFailure,
		models.SecurityEventPasswordChangeFailure,
		models.SecurityEventTwoFactorFailure,
		models.SecurityEventAccountLocked,
		models.SecurityEventSuspiciousActivity:
		return true
	}
	return false
}
