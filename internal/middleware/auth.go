package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/session"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const claimsKey ctxKey = iota

// InvalidTokenMessage is the only detail given for any authentication failure.
const InvalidTokenMessage = "invalid or missing token"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*session.Claims, error)
}

// Authenticate verifies the bearer token and stores its claims in the request context.
// Requests without a valid token are answered with 401 and never reach next.
func Authenticate(v TokenVerifier, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := session.FromHeader(r.Header.Get("Authorization"))
			if err == nil {
				var claims *session.Claims
				if claims, err = v.Verify(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
					return
				}
			}

			entry := log.WithField("path", r.URL.Path)
			if !errors.Is(err, session.ErrMissing) {
				entry = entry.WithError(err)
			}
			entry.Debug("Rejected unauthenticated request")
			writeError(w, InvalidTokenMessage, http.StatusUnauthorized)
		})
	}
}

func WithClaims(ctx context.Context, c *session.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*session.Claims)
	return c, ok && c != nil
}

// RequireRoles rejects callers whose token role is not listed with 403.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClaimsFrom(r.Context())
			if !ok {
				writeError(w, InvalidTokenMessage, http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if c.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, "Forbidden", http.StatusForbidden)
		})
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
