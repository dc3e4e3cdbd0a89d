package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	"github.com/BradenHooton/kamino-guard/internal/handlers"
	"github.com/BradenHooton/kamino-guard/internal/middleware"
	"github.com/BradenHooton/kamino-guard/internal/models"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Config holds what the router needs besides the handlers
type Config struct {
	Env              string
	IPConfig         *pkghttp.IPConfig
	ResetRateLimit   middleware.RateLimitConfig
	ServiceRateLimit middleware.RateLimitConfig
}

// NewRouter builds the full HTTP surface
func NewRouter(
	cfg Config,
	logger *slog.Logger,
	resetHandler *handlers.PasswordResetHandler,
	securityHandler *handlers.SecurityHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureLogger(logger, cfg.IPConfig))
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "route not found")
	})

	router.Get("/health", healthHandler.Health)

	router.Route("/api/v1", func(r chi.Router) {
		RegisterRoutes(r, cfg, resetHandler, securityHandler, tokenManager)
	})
	return router
}

// RegisterRoutes registers the versioned API routes
func RegisterRoutes(
	router chi.Router,
	cfg Config,
	resetHandler *handlers.PasswordResetHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
) {
	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(cfg.ResetRateLimit, cfg.IPConfig))
		r.Post("/password-reset", resetHandler.InitiateReset)
		r.Post("/password-reset/validate", resetHandler.ValidateToken)
		r.Post("/password-reset/confirm", resetHandler.ConfirmReset)
	})

	// Protected routes - bearer token required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(middleware.RateLimitByCaller(cfg.ServiceRateLimit, cfg.IPConfig))

		// Login services and admins
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleService, models.RoleAdmin))
			r.Get("/security/lockouts", securityHandler.GetLockout)
			r.Post("/security/login-attempts", securityHandler.RecordLoginAttempt)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/admin/lockouts/unlock", securityHandler.UnlockAccount)
			r.Get("/admin/users/{id}/security-events", securityHandler.ListSecurityEvents)
		})
	})
}
