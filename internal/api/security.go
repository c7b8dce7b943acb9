package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/milsabores/ventas/internal/domain/auth"
)

// APIKeyAuth returns a middleware that authenticates requests via the
// X-API-Key header. Keys are matched by HMAC-SHA256 with a server-side
// pepper, so the store only ever holds hashes. Authenticated keys must
// also carry the given scope.
func APIKeyAuth(apikeys auth.Repository, pepper []byte, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeFailure(w, http.StatusUnauthorized, "missing api key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Constant-time comparison guards against a repository returning
			// a stale or mismatched row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !info.HasScope(scope) {
				writeFailure(w, http.StatusForbidden, "insufficient scope")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
