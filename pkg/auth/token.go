package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// ResetTokenBytes is the entropy of a password reset token (256 bits).
const ResetTokenBytes = 32

// GenerateResetToken returns a URL-safe random token. Only its hash may be stored.
func GenerateResetToken() (string, error) {
	raw := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 of token, used as its storage key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
