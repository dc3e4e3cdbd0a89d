package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultResetRateLimit is the per-IP budget of the public password reset routes
func DefaultResetRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// DefaultServiceRateLimit is the per-caller budget of the JWT-protected routes
func DefaultServiceRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 600,
	}
}

// RateLimitByIP limits requests per client IP. Forwarding headers are only
// trusted from ipConfig's proxies.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByCaller limits requests per authenticated caller, falling back
// to the client IP. Must run after auth.AuthMiddleware.
func RateLimitByCaller(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil {
				return "caller:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
}
