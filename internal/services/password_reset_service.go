package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/auth"
	"github.com/BradenHooton/kamino-guard/pkg/logger"
)

const (
	resetTicketKeyPrefix    = "reset:ticket:"
	resetRateLimitKeyPrefix = "ratelimit:password-reset:"
	resetRateLimitWindow    = time.Hour
	passwordResetMethod     = "reset"

	// resetTicketGrace keeps a ticket in the cache past ExpiresAt so that a
	// late click reports an expired token rather than an unknown one.
	resetTicketGrace = time.Hour
)

// PasswordResetConfig holds token lifetime, throttling and email settings.
type PasswordResetConfig struct {
	TokenExpiry             time.Duration
	MaxRequestsPerHour      int
	ResetURLBase            string
	ResetTemplate           string
	PasswordChangedTemplate string
}

// PasswordResetService issues, validates and consumes password reset tokens.
// Only the SHA-256 of a token is ever stored.
type PasswordResetService struct {
	users  UserRepository
	cache  cache.Cache
	hasher PasswordHasher
	email  EmailSender
	audit  AuditRecorder
	config PasswordResetConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(
	users UserRepository,
	c cache.Cache,
	hasher PasswordHasher,
	email EmailSender,
	audit AuditRecorder,
	config PasswordResetConfig,
	logger *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		users:  users,
		cache:  c,
		hasher: hasher,
		email:  email,
		audit:  audit,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// InitiateReset emails a reset link to the account behind (email, tenantID).
// An unknown email gets the same Success result as a known one.
func (s *PasswordResetService) InitiateReset(ctx context.Context, email, tenantID, sourceIP string) (models.ResetResult, error) {
	id, err := newIdentity(email, tenantID)
	if err != nil {
		return models.ResetResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, id.email, id.tenantID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown account",
				logger.EmailAttr(id.email),
				slog.String("tenant_id", id.tenantID))
			return models.ResetSucceeded(), nil
		}
		s.logger.ErrorContext(ctx, "failed to load user for password reset",
			logger.EmailAttr(id.email),
			slog.String("tenant_id", id.tenantID),
			slog.Any("error", err))
		return models.ResetFailed(), nil
	}

	now := s.now()
	counterKey := resetRateLimitKeyPrefix + id.key()
	counter := s.loadCounter(ctx, counterKey, now)
	if counter.Count >= s.config.MaxRequestsPerHour {
		s.logger.WarnContext(ctx, "password reset rate limit reached",
			slog.String("user_id", user.ID),
			slog.Int("requests", counter.Count))
		return models.ResetRateLimited(), nil
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate reset token", slog.Any("error", err))
		return models.ResetFailed(), nil
	}

	ticket := models.PasswordResetTicket{
		UserID:    user.ID,
		Email:     id.email,
		TenantID:  id.tenantID,
		ExpiresAt: now.Add(s.config.TokenExpiry),
		SourceIP:  sourceIP,
		CreatedAt: now,
	}
	if err := s.cache.Set(ctx, resetTicketKeyPrefix+auth.HashToken(token), ticket, s.config.TokenExpiry+resetTicketGrace); err != nil {
		s.logger.ErrorContext(ctx, "failed to store reset ticket",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ResetFailed(), nil
	}

	counter.Count++
	if err := s.cache.Set(ctx, counterKey, counter, counter.WindowEnds.Sub(now)); err != nil {
		s.logger.WarnContext(ctx, "failed to update reset rate limit",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	err = s.email.SendTemplateEmail(ctx, user.Email, user.Name, s.config.ResetTemplate, map[string]string{
		"reset_url":       s.resetURL(token),
		"expires_minutes": strconv.Itoa(int(s.config.TokenExpiry / time.Minute)),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ResetFailed(), nil
	}

	s.logAudit(ctx, s.audit.LogEvent(ctx, models.SecurityEventPasswordResetRequested, user.ID, models.EventDetails{
		TenantID: id.tenantID,
		SourceIP: sourceIP,
	}))

	return models.ResetSucceeded(), nil
}

// ValidateResetToken checks a presented token without consuming it.
// Expired tickets are removed. A cache read failure yields Failed.
func (s *PasswordResetService) ValidateResetToken(ctx context.Context, token string) (models.ResetResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ResetResult{}, models.NewRequiredError("token")
	}

	key := resetTicketKeyPrefix + auth.HashToken(token)
	var ticket models.PasswordResetTicket
	found, err := s.cache.Get(ctx, key, &ticket)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read reset ticket", slog.Any("error", err))
		return models.ResetFailed(), nil
	}
	if !found {
		return models.ResetInvalidToken(), nil
	}

	if ticket.IsExpiredAt(s.now()) {
		if err := s.cache.Remove(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to remove expired reset ticket",
				slog.String("user_id", ticket.UserID),
				slog.Any("error", err))
		}
		return models.ResetExpiredToken(), nil
	}

	return models.ResetValidToken(&ticket), nil
}

// ResetPassword consumes the token and sets the new password.
// A user store failure returns Failed and leaves the token usable.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword, sourceIP string) (models.ResetResult, error) {
	if strings.TrimSpace(token) == "" {
		return models.ResetResult{}, models.NewRequiredError("token")
	}
	if newPassword == "" {
		return models.ResetResult{}, models.NewRequiredError("new_password")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return models.ResetResult{}, err
	}

	result, err := s.ValidateResetToken(ctx, token)
	if err != nil || result.Status != models.ResetStatusValidToken {
		return result, err
	}
	ticket := result.Ticket
	details := models.EventDetails{TenantID: ticket.TenantID, SourceIP: sourceIP}

	user, err := s.users.GetByID(ctx, ticket.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load user for password reset",
			slog.String("user_id", ticket.UserID),
			slog.Any("error", err))
		s.logAudit(ctx, s.audit.LogPasswordChangeEvent(ctx, ticket.UserID, false, passwordResetMethod, details))
		return models.ResetFailed(), nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash new password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ResetFailed(), nil
	}

	now := s.now()
	user.UpdatePassword(hash, now)
	if _, err := s.users.Update(ctx, user.ID, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to store new password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		s.logAudit(ctx, s.audit.LogPasswordChangeEvent(ctx, user.ID, false, passwordResetMethod, details))
		return models.ResetFailed(), nil
	}

	if err := s.cache.Remove(ctx, resetTicketKeyPrefix+auth.HashToken(strings.TrimSpace(token))); err != nil {
		s.logger.ErrorContext(ctx, "failed to consume reset ticket",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	err = s.email.SendTemplateEmail(ctx, user.Email, user.Name, s.config.PasswordChangedTemplate, map[string]string{
		"changed_at": now.UTC().Format(time.RFC1123),
		"source_ip":  sourceIP,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to send password changed email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.logAudit(ctx, s.audit.LogPasswordChangeEvent(ctx, user.ID, true, passwordResetMethod, details))
	s.logAudit(ctx, s.audit.LogEvent(ctx, models.SecurityEventPasswordResetCompleted, user.ID, details))

	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID))
	return models.ResetSucceeded(), nil
}

// loadCounter returns the current hourly counter, or a fresh one.
// A cache read failure counts as a fresh window.
func (s *PasswordResetService) loadCounter(ctx context.Context, key string, now time.Time) models.RateLimitCounter {
	fresh := models.RateLimitCounter{WindowEnds: now.Add(resetRateLimitWindow)}

	var counter models.RateLimitCounter
	found, err := s.cache.Get(ctx, key, &counter)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read reset rate limit", slog.Any("error", err))
		return fresh
	}
	if !found || !now.Before(counter.WindowEnds) {
		return fresh
	}
	return counter
}

func (s *PasswordResetService) resetURL(token string) string {
	return s.config.ResetURLBase + "?token=" + url.QueryEscape(token)
}

func (s *PasswordResetService) logAudit(ctx context.Context, err error) {
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record audit event", slog.Any("error", err))
	}
}
