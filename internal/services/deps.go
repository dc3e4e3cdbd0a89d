package services

import (
	"context"
	"strings"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/models"
)

// UserRepository is the user store the security services read and update.
// Lookups that find nothing return models.ErrNotFound.
type UserRepository interface {
	GetByEmail(ctx context.Context, email, tenantID string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
}

// PasswordHasher produces one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// identity is the (email, tenant) pair that scopes lockout and rate-limit state.
type identity struct {
	email    string
	tenantID string
}

func newIdentity(email, tenantID string) (identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	tenantID = strings.TrimSpace(tenantID)

	if email == "" {
		return identity{}, models.NewRequiredError("email")
	}
	if tenantID == "" {
		return identity{}, models.NewRequiredError("tenant_id")
	}
	return identity{email: email, tenantID: tenantID}, nil
}

// key is the cache-safe form of the identity.
func (id identity) key() string {
	return id.tenantID + ":" + id.email
}

// AuditRecorder is the slice of the audit log the other services write to.
type AuditRecorder interface {
	LogEvent(ctx context.Context, eventType models.SecurityEventType, userID string, details models.EventDetails) error
	LogPasswordChangeEvent(ctx context.Context, userID string, success bool, method string, details models.EventDetails) error
}

// LockoutTracker is the brute-force lockout contract.
type LockoutTracker interface {
	RecordFailedLogin(ctx context.Context, email, tenantID, sourceIP, userAgent string) (models.LoginAttemptOutcome, error)
	ClearFailedLoginAttempts(ctx context.Context, email, tenantID string) error
	IsAccountLocked(ctx context.Context, email, tenantID string) (bool, error)
	GetLockoutEndTime(ctx context.Context, email, tenantID string) (*time.Time, error)
	UnlockAccount(ctx context.Context, email, tenantID string) error
}

// SecurityAuditLog is the audit trail contract.
type SecurityAuditLog interface {
	AuditRecorder
	LogLoginEvent(ctx context.Context, userID string, success bool, failureReason string, details models.EventDetails) error
	LogAccountLockoutEvent(ctx context.Context, userID string, lockedUntil time.Time, attempts int, details models.EventDetails) error
	LogTwoFactorEvent(ctx context.Context, userID string, success bool, method string, details models.EventDetails) error
	GetEvents(ctx context.Context, userID string, q models.EventQuery) ([]*models.SecurityAuditEvent, error)
}
