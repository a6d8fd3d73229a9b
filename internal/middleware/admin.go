package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminToken guards maintenance endpoints with a shared secret sent either
// as a bearer token or in X-Admin-Token. An empty token disables the check.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validAdminToken(r, token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"admin token required"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validAdminToken(r *http.Request, token string) bool {
	got := r.Header.Get("X-Admin-Token")
	if got == "" {
		auth := r.Header.Get("Authorization")
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			got = strings.TrimSpace(auth[7:])
		}
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
