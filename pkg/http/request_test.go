package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	cfg, _ := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "203.0.113.5:4431"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-IP", "1.2.3.4")

	assert.Equal(t, "203.0.113.5", pkghttp.ExtractClientIP(req, cfg))
}

func TestExtractClientIP_TrustedProxy(t *testing.T) {
	cfg, _ := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "fd00::/8"})

	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "10.1.2.3:80"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.20, 10.1.2.3")
	assert.Equal(t, "198.51.100.20", pkghttp.ExtractClientIP(req, cfg))

	req = httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "[fd00::1]:80"
	req.Header.Set("X-Real-IP", "2001:db8::7")
	assert.Equal(t, "2001:db8::7", pkghttp.ExtractClientIP(req, cfg))
}

func TestExtractClientIP_NoConfig(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "8.8.8.8")

	assert.Equal(t, "127.0.0.1", pkghttp.ExtractClientIP(req, nil))
}

func TestNewIPConfig_ReportsInvalidCIDRs(t *testing.T) {
	cfg, invalid := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "garbage", " ", "10.0.0.1"})

	require.NotNil(t, cfg)
	assert.Equal(t, []string{"garbage", "10.0.0.1"}, invalid)
}

type decodeTarget struct {
	Email string `json:"email"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@b.com"}`, false},
		{"unknown field", `{"email":"a@b.com","admin":true}`, true},
		{"trailing data", `{"email":"a@b.com"}{}`, true},
		{"not json", `email=a@b.com`, true},
		{"too large", `{"email":"` + strings.Repeat("a", pkghttp.DefaultMaxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst decodeTarget
			err := pkghttp.DecodeJSON(w, req, &dst)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", dst.Email)
		})
	}
}
