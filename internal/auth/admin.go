package auth

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminGuard protects operator-only endpoints with a static API key.
// The key is stored as a bcrypt hash so a leaked config file does not
// leak the key itself.
type AdminGuard struct {
	keyHash []byte
}

// NewAdminGuard creates a guard from a bcrypt hash of the admin key.
// An empty hash disables all admin endpoints.
func NewAdminGuard(keyHash string) *AdminGuard {
	return &AdminGuard{keyHash: []byte(keyHash)}
}

// HashKey produces a bcrypt hash suitable for the admin.key_hash setting.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Require wraps a handler, rejecting requests without a valid X-Admin-Key.
func (g *AdminGuard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(g.keyHash) == 0 {
			writeAuthError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if key == "" || bcrypt.CompareHashAndPassword(g.keyHash, []byte(key)) != nil {
			writeAuthError(w, http.StatusForbidden, "invalid admin key")
			return
		}
		next(w, r)
	}
}
