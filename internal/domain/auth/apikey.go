// Package auth holds the API-key identity model consumed by the HTTP
// boundary's authentication gate.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// ScopeOrdersWrite authorizes order mutations and payment initiation.
const ScopeOrdersWrite = "orders:write"

// APIKeyInfo is a validated API key: the raw key is never stored, only its
// HMAC-SHA256 hash.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of active API keys by their HMAC hash.
type Repository interface {
	// FindByHash returns the active key with the given hex-encoded hash, or
	// ErrKeyNotFound.
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
