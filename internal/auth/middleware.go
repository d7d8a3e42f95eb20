package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pakkhtun/biryani-backend/internal/common"
)

// TokenParser validates a session token and returns the phone it belongs to.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// RequireAdmin guards staff endpoints with a static bearer token. An empty
// configured token disables the admin surface entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				common.WriteError(w, common.NotFound("not found"))
				return
			}
			header := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), expected) != 1 {
				common.WriteError(w, common.Unauthorized("admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated phone on the request context.
func RequireAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				common.WriteError(w, common.Unauthorized("missing bearer token"))
				return
			}
			phone, err := parser.ParseToken(strings.TrimSpace(token))
			if err != nil {
				common.WriteError(w, common.Unauthorized("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithPhone(r.Context(), phone)))
		})
	}
}
