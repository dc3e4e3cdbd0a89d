package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	"github.com/BradenHooton/kamino-guard/internal/models"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/go-chi/chi/v5"
)

const maxEventLimit = 1000

// LoginMonitor gates and records login attempts
type LoginMonitor interface {
	CheckLogin(ctx context.Context, email, tenantID string) (models.LoginGate, error)
	ReportSuccess(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error)
	ReportFailure(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error)
	Unlock(ctx context.Context, email, tenantID, userID, actorID string) error
}

// SecurityEventReader reads a user's audit trail
type SecurityEventReader interface {
	GetEvents(ctx context.Context, userID string, q models.EventQuery) ([]*models.SecurityAuditEvent, error)
}

// SecurityHandler serves the service-to-service and admin routes
type SecurityHandler struct {
	monitor LoginMonitor
	events  SecurityEventReader
	logger  *slog.Logger
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(monitor LoginMonitor, events SecurityEventReader, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		monitor: monitor,
		events:  events,
		logger:  logger,
	}
}

// LockoutQuery is the query of GET /security/lockouts
type LockoutQuery struct {
	Email    string `json:"email" validate:"required,email"`
	TenantID string `json:"tenant_id" validate:"required"`
}

// LoginAttemptRequest is the body of POST /security/login-attempts.
// SourceIP is the end user's address as seen by the calling login service.
type LoginAttemptRequest struct {
	Email     string `json:"email" validate:"required,email"`
	TenantID  string `json:"tenant_id" validate:"required"`
	UserID    string `json:"user_id"`
	Success   *bool  `json:"success" validate:"required"`
	SourceIP  string `json:"source_ip" validate:"omitempty,ip"`
	UserAgent string `json:"user_agent" validate:"max=512"`
	Reason    string `json:"reason" validate:"max=128"`
}

// UnlockRequest is the body of POST /admin/lockouts/unlock
type UnlockRequest struct {
	Email    string `json:"email" validate:"required,email"`
	TenantID string `json:"tenant_id" validate:"required"`
	UserID   string `json:"user_id"`
}

// SecurityEventsResponse wraps an audit trail page
type SecurityEventsResponse struct {
	Events []*models.SecurityAuditEvent `json:"events"`
	Count  int                          `json:"count"`
}

// GetLockout handles GET /security/lockouts
func (h *SecurityHandler) GetLockout(w http.ResponseWriter, r *http.Request) {
	q := LockoutQuery{
		Email:    r.URL.Query().Get("email"),
		TenantID: r.URL.Query().Get("tenant_id"),
	}
	if err := ValidateRequest(q); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	gate, err := h.monitor.CheckLogin(r.Context(), q.Email, q.TenantID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, gate)
}

// RecordLoginAttempt handles POST /security/login-attempts
func (h *SecurityHandler) RecordLoginAttempt(w http.ResponseWriter, r *http.Request) {
	var req LoginAttemptRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	attempt := models.LoginAttempt{
		Email:     req.Email,
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		SourceIP:  req.SourceIP,
		UserAgent: req.UserAgent,
		Reason:    req.Reason,
	}

	var outcome models.LoginAttemptOutcome
	var err error
	if *req.Success {
		outcome, err = h.monitor.ReportSuccess(r.Context(), attempt)
	} else {
		outcome, err = h.monitor.ReportFailure(r.Context(), attempt)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, outcome)
}

// UnlockAccount handles POST /admin/lockouts/unlock
func (h *SecurityHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req UnlockRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := h.monitor.Unlock(r.Context(), req.Email, req.TenantID, req.UserID, claims.UserID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Account unlocked."})
}

// ListSecurityEvents handles GET /admin/users/{id}/security-events
func (h *SecurityHandler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteValidationError(w, "id", "this field is required")
		return
	}

	q, field, msg := parseEventQuery(r)
	if field != "" {
		pkghttp.WriteValidationError(w, field, msg)
		return
	}

	events, err := h.events.GetEvents(r.Context(), userID, q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, SecurityEventsResponse{Events: events, Count: len(events)})
}

// parseEventQuery returns the offending field and a message when the query is malformed.
func parseEventQuery(r *http.Request) (models.EventQuery, string, string) {
	values := r.URL.Query()
	q := models.EventQuery{
		TenantID:  values.Get("tenant_id"),
		EventType: models.SecurityEventType(values.Get("event_type")),
	}

	if q.EventType != "" && !models.IsKnownEventType(q.EventType) {
		return q, "event_type", "unknown event type"
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, p.name, "must be an RFC 3339 timestamp"
		}
		*p.dst = &ts
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, "to", "must not be before from"
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxEventLimit {
			return q, "limit", "must be between 1 and " + strconv.Itoa(maxEventLimit)
		}
		q.Limit = limit
	}
	return q, "", ""
}
