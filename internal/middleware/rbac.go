package middleware

import (
	"net/http"
)

// RequireAnyRole rejects callers whose token carries none of roleNames.
// Roles come from the token; there is no local role table.
func RequireAnyRole(roleNames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			for _, role := range roleNames {
				if p.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// RequireRole checks if the user has the required role
func RequireRole(roleName string) func(http.Handler) http.Handler {
	return RequireAnyRole(roleName)
}
