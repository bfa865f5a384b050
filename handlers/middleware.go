// civictrack/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"civictrack/models"
	"civictrack/utils"

	"github.com/go-chi/chi/v5/middleware"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const UserKey ContextKey = "user"

// currentUser returns the authenticated user placed in the context by
// RequireAuth, or nil for unauthenticated requests.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserKey).(*models.User)
	return user
}

// RequireAuth validates the Bearer token, loads the user, and rejects
// banned accounts. The user is stored in the request context.
func RequireAuth(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "Missing or malformed authorization header", app)
				return
			}
			userID, err := utils.ParseToken(strings.TrimPrefix(header, "Bearer "), app.JWTSecret())
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token", app)
				return
			}
			user, err := app.DB().UserByID(userID)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Unknown user", app)
				return
			}
			if user.IsBanned {
				respondError(w, http.StatusForbidden, "Account is banned", app)
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin restricts a route subtree to admin accounts. Must run
// after RequireAuth.
func RequireAdmin(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil || user.Role != models.RoleAdmin {
				respondError(w, http.StatusForbidden, "Admin access required", app)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies the per-IP token bucket to a route subtree.
func RateLimit(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := app.RateLimiter().GetLimiter(utils.GetIPAddress(r))
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "Too many requests, slow down", app)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewStructuredLogger emits one slog line per request.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"ip", utils.GetIPAddress(r),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
