package middleware

import (
	"context"
	"net/http"

	"github.com/medscan/image-service/internal/auth"
	"github.com/medscan/image-service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated caller's subject identifier.
const UserIDKey contextKey = "userID"

// TokenVerifier validates an Authorization header value and returns the
// caller's claims. Satisfied by *auth.Verifier; tests substitute stubs.
type TokenVerifier interface {
	Verify(ctx context.Context, authHeader string) (*auth.Claims, error)
}

// RequireAuth returns middleware that verifies the bearer token and injects
// the caller's subject into the request context. All failures are a uniform 401.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				response.Unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated subject from the request context.
// Returns an empty string if the request did not pass through RequireAuth.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
