package models

import "time"

// LoginFailureRecord is one failed attempt held inside a lockout window.
// It is never persisted individually.
type LoginFailureRecord struct {
	Timestamp time.Time
	SourceIP  string
	UserAgent string
}

// AccountLockState mirrors the lock fields of the user record into the cache.
type AccountLockState struct {
	Email       string    `json:"email"`
	TenantID    string    `json:"tenant_id"`
	LockedAt    time.Time `json:"locked_at"`
	LockedUntil time.Time `json:"locked_until"`
}

// ActiveAt reports whether the lock is still in force at now.
func (s *AccountLockState) ActiveAt(now time.Time) bool {
	return now.Before(s.LockedUntil)
}

// LoginOutcomeStatus tags a LoginAttemptOutcome.
type LoginOutcomeStatus string

const (
	LoginOutcomeSuccess LoginOutcomeStatus = "success"
	LoginOutcomeFailed  LoginOutcomeStatus = "failed"
	LoginOutcomeLocked  LoginOutcomeStatus = "locked"
)

// LoginAttemptOutcome is the result of reporting a login attempt.
// Attempts and MaxAttempts are set for Failed; LockedUntil for Locked.
type LoginAttemptOutcome struct {
	Status      LoginOutcomeStatus `json:"status"`
	Attempts    int                `json:"attempts,omitempty"`
	MaxAttempts int                `json:"max_attempts,omitempty"`
	LockedUntil *time.Time         `json:"locked_until,omitempty"`
}

// SuccessOutcome is returned for successful attempts.
func SuccessOutcome() LoginAttemptOutcome {
	return LoginAttemptOutcome{Status: LoginOutcomeSuccess}
}

// FailedOutcome is returned while the failure count is below the threshold.
func FailedOutcome(attempts, maxAttempts int) LoginAttemptOutcome {
	return LoginAttemptOutcome{Status: LoginOutcomeFailed, Attempts: attempts, MaxAttempts: maxAttempts}
}

// LockedOutcome is returned once the threshold is reached.
func LockedOutcome(until time.Time) LoginAttemptOutcome {
	return LoginAttemptOutcome{Status: LoginOutcomeLocked, LockedUntil: &until}
}

// IsLocked reports whether the outcome locked the account.
func (o LoginAttemptOutcome) IsLocked() bool {
	return o.Status == LoginOutcomeLocked
}

// LoginGate is the pre-authentication lock check handed to the login flow.
type LoginGate struct {
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// LoginAttempt describes one authentication attempt reported by the login flow.
// UserID is empty when the email matched no account.
type LoginAttempt struct {
	Email     string `json:"email" validate:"required,email"`
	TenantID  string `json:"tenant_id" validate:"required"`
	UserID    string `json:"user_id,omitempty"`
	SourceIP  string `json:"-"`
	UserAgent string `json:"user_agent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Subject is the audit user id for the attempt.
func (a LoginAttempt) Subject() string {
	if a.UserID == "" {
		return AnonymousSubject
	}
	return a.UserID
}
