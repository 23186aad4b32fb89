package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/jwt"
	"github.com/hirelens/resume-video-service/internal/utils/response"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"
)

// AuthMiddleware validates the bearer JWT and puts the caller's id and role
// in the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.WriteError(w, http.StatusUnauthorized, errors.New("Authorization header required"))
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				response.WriteError(w, http.StatusUnauthorized, errors.New("Invalid authorization header format"))
				return
			}
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, errors.New("Token not provided"))
				return
			}

			claims, err := jwt.ExtractClaims(token, jwtSecret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, errors.New("Invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose token carries a different role. It must
// run after AuthMiddleware.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got, ok := GetRoleFromContext(r.Context()); !ok || got != role {
				response.WriteError(w, http.StatusForbidden, errors.New("this action requires the "+string(role)+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetRoleFromContext(ctx context.Context) (types.Role, bool) {
	role, ok := ctx.Value(RoleKey).(types.Role)
	return role, ok
}
