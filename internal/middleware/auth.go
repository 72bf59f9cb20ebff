package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"narrative-safety/internal/auth"
	"narrative-safety/internal/models"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	RequestIDKey contextKey = "request_id"
)

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.JWTClaims, error)
}

// AuthMiddleware validates JWT tokens
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Authenticate validates the bearer token and stores the principal in the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := WithPrincipal(r.Context(), claims.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal retrieves the authenticated caller from the request context
func GetPrincipal(r *http.Request) (models.Principal, bool) {
	p, ok := r.Context().Value(PrincipalKey).(models.Principal)
	return p, ok
}

// GetUserID retrieves the user ID from the request context
func GetUserID(r *http.Request) (uint, bool) {
	p, ok := GetPrincipal(r)
	return p.UserID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
