package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := SecureLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest("GET", "/api/v1/security/lockouts?email=bob@x.com&tenant_id=a", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/api/v1/security/lockouts?[REDACTED]", line["path"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, float64(401), line["status"])
	assert.Equal(t, "192.0.2.1", line["client_ip"])
	assert.NotContains(t, buf.String(), "bob@x.com")
}

func TestSecureLogger_KeepsHarmlessQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := SecureLogger(logger, nil)(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health?verbose=1", nil))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/health?verbose=1", line["path"])
	assert.Equal(t, "INFO", line["level"])
}
