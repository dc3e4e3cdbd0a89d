package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/auth"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
)

// writeServiceError maps an error returned by a security service.
// Services only return validation errors from their public operations;
// anything else is reported as internal.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *models.ValidationError
	var pwErr *auth.PasswordValidationError

	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationError(w, ve.Field, ve.Message)
	case errors.As(err, &pwErr):
		pkghttp.WriteError(w, http.StatusBadRequest, "weak_password", "password does not meet the password policy")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "not found")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
