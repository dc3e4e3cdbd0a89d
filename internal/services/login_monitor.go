package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/logger"
)

// LoginMonitor is what the login flow talks to: it gates attempts on the
// lock state and reports outcomes to the tracker and the audit log.
type LoginMonitor struct {
	tracker LockoutTracker
	audit   SecurityAuditLog
	logger  *slog.Logger
}

// NewLoginMonitor creates a new LoginMonitor
func NewLoginMonitor(tracker LockoutTracker, audit SecurityAuditLog, logger *slog.Logger) *LoginMonitor {
	return &LoginMonitor{
		tracker: tracker,
		audit:   audit,
		logger:  logger,
	}
}

// CheckLogin tells the caller whether to refuse the attempt before checking
// the password.
func (m *LoginMonitor) CheckLogin(ctx context.Context, email, tenantID string) (models.LoginGate, error) {
	until, err := m.tracker.GetLockoutEndTime(ctx, email, tenantID)
	if err != nil {
		return models.LoginGate{}, err
	}
	return models.LoginGate{Locked: until != nil, LockedUntil: until}, nil
}

// ReportSuccess resets the failure window and audits the login.
func (m *LoginMonitor) ReportSuccess(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error) {
	if attempt.UserID == "" {
		return models.LoginAttemptOutcome{}, models.NewRequiredError("user_id")
	}
	if err := m.tracker.ClearFailedLoginAttempts(ctx, attempt.Email, attempt.TenantID); err != nil {
		return models.LoginAttemptOutcome{}, err
	}

	m.record(ctx, m.audit.LogLoginEvent(ctx, attempt.UserID, true, "", detailsOf(attempt)))
	return models.SuccessOutcome(), nil
}

// ReportFailure records the failure, audits it and audits the lock if this
// attempt caused one.
func (m *LoginMonitor) ReportFailure(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error) {
	outcome, err := m.tracker.RecordFailedLogin(ctx, attempt.Email, attempt.TenantID, attempt.SourceIP, attempt.UserAgent)
	if err != nil {
		return models.LoginAttemptOutcome{}, err
	}

	details := detailsOf(attempt)
	m.record(ctx, m.audit.LogLoginEvent(ctx, attempt.Subject(), false, attempt.Reason, details))

	if outcome.IsLocked() {
		m.record(ctx, m.audit.LogAccountLockoutEvent(ctx, attempt.Subject(), *outcome.LockedUntil, 0, details))
		m.logger.WarnContext(ctx, "login locked out",
			logger.EmailAttr(attempt.Email),
			slog.String("tenant_id", attempt.TenantID),
			slog.Time("locked_until", *outcome.LockedUntil))
	}
	return outcome, nil
}

// Unlock lifts a lock on behalf of actorID.
func (m *LoginMonitor) Unlock(ctx context.Context, email, tenantID, userID, actorID string) error {
	if err := m.tracker.UnlockAccount(ctx, email, tenantID); err != nil {
		return err
	}

	subject := userID
	if subject == "" {
		subject = models.AnonymousSubject
	}
	m.record(ctx, m.audit.LogEvent(ctx, models.SecurityEventAccountUnlocked, subject, models.EventDetails{
		TenantID: tenantID,
		Extra:    models.AuditMetadata{"actor_id": actorID},
	}))
	return nil
}

func (m *LoginMonitor) record(ctx context.Context, err error) {
	if err != nil {
		m.logger.WarnContext(ctx, "failed to record audit event", slog.Any("error", err))
	}
}

func detailsOf(a models.LoginAttempt) models.EventDetails {
	return models.EventDetails{
		TenantID:  a.TenantID,
		SourceIP:  a.SourceIP,
		UserAgent: a.UserAgent,
	}
}
