package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Collaborator errors
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrEmailDelivery    = errors.New("email delivery failed")
)

// ValidationError rejects a call whose required argument is missing or malformed.
// It is the only error kind the security services return to callers.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewRequiredError builds a ValidationError for an empty required argument.
func NewRequiredError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
