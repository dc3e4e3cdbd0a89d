package models

import (
	"time"
)

// SecurityEventType names a security audit event.
type SecurityEventType string

// Event types for security auditing
const (
	SecurityEventLoginSuccess           SecurityEventType = "login_success"
	SecurityEventLoginFailure           SecurityEventType = "login_failure"
	SecurityEventPasswordChangeSuccess  SecurityEventType = "password_change_success"
	SecurityEventPasswordChangeFailure  SecurityEventType = "password_change_failure"
	SecurityEventPasswordResetRequested SecurityEventType = "password_reset_requested"
	SecurityEventPasswordResetCompleted SecurityEventType = "password_reset_completed"
	SecurityEventAccountLocked          SecurityEventType = "account_locked"
	SecurityEventAccountUnlocked        SecurityEventType = "account_unlocked"
	SecurityEventTwoFactorSuccess       SecurityEventType = "two_factor_success"
	SecurityEventTwoFactorFailure       SecurityEventType = "two_factor_failure"
	SecurityEventSuspiciousActivity     SecurityEventType = "suspicious_activity"
)

// AnonymousSubject is the user id used when an event cannot be tied to a known user.
const AnonymousSubject = "anonymous"

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Clone returns a shallow copy so callers cannot mutate a logged event.
func (am AuditMetadata) Clone() AuditMetadata {
	if am == nil {
		return AuditMetadata{}
	}
	out := make(AuditMetadata, len(am))
	for k, v := range am {
		out[k] = v
	}
	return out
}

// SecurityAuditEvent is an append-only record. Events are ordered by Timestamp.
type SecurityAuditEvent struct {
	ID        string            `json:"id"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	SourceIP  string            `json:"source_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Extra     AuditMetadata     `json:"extra,omitempty"`
}

// EventDetails carries the optional request context of an audit event.
type EventDetails struct {
	TenantID  string
	SourceIP  string
	UserAgent string
	Extra     AuditMetadata
}

// EventQuery filters GetEvents. Zero values mean "no filter".
type EventQuery struct {
	TenantID  string
	EventType SecurityEventType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Matches reports whether the event passes every set filter.
func (q EventQuery) Matches(e *SecurityAuditEvent) bool {
	if q.TenantID != "" && e.TenantID != q.TenantID {
		return false
	}
	if q.EventType != "" && e.EventType != q.EventType {
		return false
	}
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Timestamp.After(*q.To) {
		return false
	}
	return true
}

var knownEventTypes = map[SecurityEventType]bool{
	SecurityEventLoginSuccess:           true,
	SecurityEventLoginFailure:           true,
	SecurityEventPasswordChangeSuccess:  true,
	SecurityEventPasswordChangeFailure:  true,
	SecurityEventPasswordResetRequested: true,
	SecurityEventPasswordResetCompleted: true,
	SecurityEventAccountLocked:          true,
	SecurityEventAccountUnlocked:        true,
	SecurityEventTwoFactorSuccess:       true,
	SecurityEventTwoFactorFailure:       true,
	SecurityEventSuspiciousActivity:     true,
}

// IsKnownEventType reports whether t is one of the defined event types.
func IsKnownEventType(t SecurityEventType) bool {
	return knownEventTypes[t]
}
