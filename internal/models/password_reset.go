package models

import "time"

// PasswordResetTicket is stored under the hash of the issued token, never the token.
type PasswordResetTicket struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TenantID  string    `json:"tenant_id"`
	ExpiresAt time.Time `json:"expires_at"`
	SourceIP  string    `json:"source_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpiredAt reports whether the ticket has expired at now.
func (t *PasswordResetTicket) IsExpiredAt(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// RateLimitCounter is a fixed-window request counter.
type RateLimitCounter struct {
	Count      int       `json:"count"`
	WindowEnds time.Time `json:"window_ends"`
}

// ResetStatus tags a ResetResult.
type ResetStatus string

const (
	ResetStatusSuccess      ResetStatus = "success"
	ResetStatusRateLimited  ResetStatus = "rate_limited"
	ResetStatusFailed       ResetStatus = "failed"
	ResetStatusValidToken   ResetStatus = "valid_token"
	ResetStatusInvalidToken ResetStatus = "invalid_token"
	ResetStatusExpiredToken ResetStatus = "expired_token"
)

// ResetResult is returned by every password reset operation.
// Ticket is only set for ResetStatusValidToken.
type ResetResult struct {
	Status ResetStatus
	Ticket *PasswordResetTicket
}

// Succeeded reports whether the operation completed (or the token is valid).
func (r ResetResult) Succeeded() bool {
	return r.Status == ResetStatusSuccess || r.Status == ResetStatusValidToken
}

func resetResult(status ResetStatus) ResetResult {
	return ResetResult{Status: status}
}

// Convenience constructors
func ResetSucceeded() ResetResult    { return resetResult(ResetStatusSuccess) }
func ResetRateLimited() ResetResult  { return resetResult(ResetStatusRateLimited) }
func ResetFailed() ResetResult       { return resetResult(ResetStatusFailed) }
func ResetInvalidToken() ResetResult { return resetResult(ResetStatusInvalidToken) }
func ResetExpiredToken() ResetResult { return resetResult(ResetStatusExpiredToken) }

// ResetValidToken wraps a still-valid ticket.
func ResetValidToken(ticket *PasswordResetTicket) ResetResult {
	return ResetResult{Status: ResetStatusValidToken, Ticket: ticket}
}
