package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/security"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type contextKey string

const (
	UserContextKey  contextKey = "user"
	TokenContextKey contextKey = "token"
)

type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

func AuthMiddleware(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.BearerToken(r)
			if raw == "" {
				observability.RecordTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			user, err := auth.Authenticate(r.Context(), raw)
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				observability.RecordTokenValidation(r.Context(), "expired", "bearer")
				response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired", nil)
				return
			case errors.Is(err, service.ErrUnauthenticated):
				observability.RecordTokenValidation(r.Context(), "invalid", "bearer")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			case err != nil:
				observability.RecordTokenValidation(r.Context(), "error", "bearer")
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "token validation failed", nil)
				return
			}
			observability.RecordTokenValidation(r.Context(), "valid", "bearer")
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = context.WithValue(ctx, TokenContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*domain.User)
	return u, ok && u != nil
}

func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(TokenContextKey).(string)
	return t, ok && t != ""
}
