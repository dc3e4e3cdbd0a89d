package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted on the service's protected routes
const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// TokenClaims are the claims of bearer tokens presented to the service.
// Tokens are issued by the identity service; this service only validates them.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
