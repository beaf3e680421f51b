package middleware

import (
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
)

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
			return
		}
		if !user.IsAdmin() {
			observability.RecordAuthEvent(r.Context(), "admin_check", "denied")
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin role required", map[string]string{"required": domain.RoleAdmin})
			return
		}
		next.ServeHTTP(w, r)
	})
}
