package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// ScopeAdmin grants access to the admin panel endpoints.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Upsert(ctx context.Context, info *APIKeyInfo) error
}

// Hash returns the hex HMAC-SHA256 of secret under pepper. API keys and
// session tokens are stored only in this form.
func Hash(pepper []byte, secret string) string {
	return hex.EncodeToString(HashBytes(pepper, secret))
}

// HashBytes is Hash without the hex encoding.
func HashBytes(pepper []byte, secret string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(secret))
	return mac.Sum(nil)
}
