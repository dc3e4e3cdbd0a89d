package auth

import (
	"encoding/base64"
	"testing"
)

func TestGenerateResetToken(t *testing.T) {
	first, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken failed: %v", err)
	}
	second, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken failed: %v", err)
	}

	if first == second {
		t.Errorf("expected two tokens to differ")
	}

	raw, err := base64.URLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("expected URL-safe base64 token: %v", err)
	}
	if len(raw) != ResetTokenBytes {
		t.Errorf("expected %d random bytes, got %d", ResetTokenBytes, len(raw))
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("abc")

	if hash != HashToken("abc") {
		t.Errorf("expected hashing to be deterministic")
	}
	if hash == HashToken("abd") {
		t.Errorf("expected different tokens to hash differently")
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(hash))
	}
	// sha256("abc")
	if hash != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("unexpected digest %s", hash)
	}
}
