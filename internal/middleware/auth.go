package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/models"
	"github.com/xelth-com/esealgo/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionCookie carries the session token for browser clients
const SessionCookie = "token"

// UserLookup resolves the subject of a valid token
type UserLookup interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

// tokenFrom reads the session cookie, then falls back to a Bearer header
func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   string(apperr.KindAuth),
		"details": detail,
	})
}

// Auth verifies the session token and stores the caller in the request context
func Auth(cfg *config.Config, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				unauthorized(w, "Access denied. No token provided.")
				return
			}

			claims, err := utils.ValidateToken(token, cfg.JWTSecret)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}
			userID, ok := utils.UserIDFromClaims(claims)
			if !ok {
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.Get(r.Context(), userID)
			if err != nil {
				unauthorized(w, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the caller stored by Auth
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}
