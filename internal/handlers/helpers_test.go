package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	"github.com/BradenHooton/kamino-guard/internal/models"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.50:40000"
	return req
}

// WithCaller adds caller claims to request context
func WithCaller(req *http.Request, userID, role string) *http.Request {
	claims := &models.TokenClaims{UserID: userID, Role: role, Type: auth.AccessTokenType}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if target != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), target))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockPasswordResetService implements PasswordResetService for testing
type MockPasswordResetService struct {
	InitiateResetFunc      func(ctx context.Context, email, tenantID, sourceIP string) (models.ResetResult, error)
	ValidateResetTokenFunc func(ctx context.Context, token string) (models.ResetResult, error)
	ResetPasswordFunc      func(ctx context.Context, token, newPassword, sourceIP string) (models.ResetResult, error)
}

func (m *MockPasswordResetService) InitiateReset(ctx context.Context, email, tenantID, sourceIP string) (models.ResetResult, error) {
	if m.InitiateResetFunc != nil {
		return m.InitiateResetFunc(ctx, email, tenantID, sourceIP)
	}
	return models.ResetSucceeded(), nil
}

func (m *MockPasswordResetService) ValidateResetToken(ctx context.Context, token string) (models.ResetResult, error) {
	if m.ValidateResetTokenFunc != nil {
		return m.ValidateResetTokenFunc(ctx, token)
	}
	return models.ResetInvalidToken(), nil
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, token, newPassword, sourceIP string) (models.ResetResult, error) {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword, sourceIP)
	}
	return models.ResetInvalidToken(), nil
}

// MockLoginMonitor implements LoginMonitor for testing
type MockLoginMonitor struct {
	CheckLoginFunc    func(ctx context.Context, email, tenantID string) (models.LoginGate, error)
	ReportSuccessFunc func(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error)
	ReportFailureFunc func(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error)
	UnlockFunc        func(ctx context.Context, email, tenantID, userID, actorID string) error
}

func (m *MockLoginMonitor) CheckLogin(ctx context.Context, email, tenantID string) (models.LoginGate, error) {
	if m.CheckLoginFunc != nil {
		return m.CheckLoginFunc(ctx, email, tenantID)
	}
	return models.LoginGate{}, nil
}

func (m *MockLoginMonitor) ReportSuccess(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error) {
	if m.ReportSuccessFunc != nil {
		return m.ReportSuccessFunc(ctx, attempt)
	}
	return models.SuccessOutcome(), nil
}

func (m *MockLoginMonitor) ReportFailure(ctx context.Context, attempt models.LoginAttempt) (models.LoginAttemptOutcome, error) {
	if m.ReportFailureFunc != nil {
		return m.ReportFailureFunc(ctx, attempt)
	}
	return models.FailedOutcome(1, 5), nil
}

func (m *MockLoginMonitor) Unlock(ctx context.Context, email, tenantID, userID, actorID string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, email, tenantID, userID, actorID)
	}
	return nil
}

// MockSecurityEventReader implements SecurityEventReader for testing
type MockSecurityEventReader struct {
	GetEventsFunc func(ctx context.Context, userID string, q models.EventQuery) ([]*models.SecurityAuditEvent, error)
}

func (m *MockSecurityEventReader) GetEvents(ctx context.Context, userID string, q models.EventQuery) ([]*models.SecurityAuditEvent, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, userID, q)
	}
	return []*models.SecurityAuditEvent{}, nil
}

func newResetHandler(svc PasswordResetService) *PasswordResetHandler {
	return NewPasswordResetHandler(svc, &pkghttp.IPConfig{}, auth.ResponseFloor{}, discardLogger())
}
