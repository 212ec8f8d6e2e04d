package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

// ServiceContextKey is the key for storing service claims in context
const ServiceContextKey contextKey = "service"

// ServiceAuthMiddleware validates service tokens and injects the calling
// service's claims into the request context.
func ServiceAuthMiddleware(tm *ServiceTokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ServiceContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceFromContext extracts validated service claims from the context.
func ServiceFromContext(ctx context.Context) (*models.ServiceClaims, bool) {
	claims, ok := ctx.Value(ServiceContextKey).(*models.ServiceClaims)
	return claims, ok
}
