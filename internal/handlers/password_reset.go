package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	"github.com/BradenHooton/kamino-guard/internal/models"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
)

// resetAcceptedMessage is returned for every initiate request, whatever happened.
const resetAcceptedMessage = "If an account exists for this email, a password reset link has been sent."

// PasswordResetService is the reset token lifecycle used by the handler
type PasswordResetService interface {
	InitiateReset(ctx context.Context, email, tenantID, sourceIP string) (models.ResetResult, error)
	ValidateResetToken(ctx context.Context, token string) (models.ResetResult, error)
	ResetPassword(ctx context.Context, token, newPassword, sourceIP string) (models.ResetResult, error)
}

// PasswordResetHandler serves the public password reset routes
type PasswordResetHandler struct {
	service  PasswordResetService
	ipConfig *pkghttp.IPConfig
	floor    auth.ResponseFloor
	logger   *slog.Logger
}

// NewPasswordResetHandler creates a new PasswordResetHandler. Initiate
// responses are padded to floor.
func NewPasswordResetHandler(service PasswordResetService, ipConfig *pkghttp.IPConfig, floor auth.ResponseFloor, logger *slog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{
		service:  service,
		ipConfig: ipConfig,
		floor:    floor,
		logger:   logger,
	}
}

// InitiateResetRequest is the body of POST /password-reset
type InitiateResetRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	TenantID string `json:"tenant_id" validate:"required,max=128"`
}

// TokenRequest is the body of POST /password-reset/validate
type TokenRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

// ConfirmResetRequest is the body of POST /password-reset/confirm
type ConfirmResetRequest struct {
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"new_password" validate:"required,max=128"`
}

// MessageResponse carries a human-readable status message
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenStatusResponse is returned for a valid token
type TokenStatusResponse struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InitiateReset handles POST /password-reset. Every well-formed request
// gets the same 202, including unknown, rate-limited and failed ones.
func (h *PasswordResetHandler) InitiateReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req InitiateResetRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.InitiateReset(r.Context(), req.Email, req.TenantID, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !result.Succeeded() {
		h.logger.InfoContext(r.Context(), "password reset not issued",
			slog.String("status", string(result.Status)))
	}

	h.floor.WaitFrom(r.Context(), start)
	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: resetAcceptedMessage})
}

// ValidateToken handles POST /password-reset/validate
func (h *PasswordResetHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ValidateResetToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if result.Status == models.ResetStatusValidToken {
		pkghttp.WriteJSON(w, http.StatusOK, TokenStatusResponse{Valid: true, ExpiresAt: result.Ticket.ExpiresAt})
		return
	}
	writeResetResult(w, result)
}

// ConfirmReset handles POST /password-reset/confirm
func (h *PasswordResetHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if result.Status == models.ResetStatusSuccess {
		pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset."})
		return
	}
	writeResetResult(w, result)
}

func writeResetResult(w http.ResponseWriter, result models.ResetResult) {
	switch result.Status {
	case models.ResetStatusInvalidToken:
		pkghttp.WriteError(w, http.StatusBadRequest, string(models.ResetStatusInvalidToken), "reset token is invalid")
	case models.ResetStatusExpiredToken:
		pkghttp.WriteError(w, http.StatusBadRequest, string(models.ResetStatusExpiredToken), "reset token has expired")
	default:
		pkghttp.WriteInternalError(w, "password reset could not be completed")
	}
}
