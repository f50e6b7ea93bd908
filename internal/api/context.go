package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// UserIDHeader carries the caller identity set by the upstream auth proxy.
const UserIDHeader = "x-uid"

type userIDContextKey struct{}

// WithUserID returns a new context with the caller's user ID attached.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// UserIDFromContext returns the caller's user ID, or "" when none was attached.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey{}).(string)
	return id
}

// IdentityMiddleware requires the x-uid header and stores its value in the context.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if uid == "" {
			slog.Warn("missing identity header",
				"component", "api",
				"path", r.URL.Path,
				"method", r.Method,
			)
			WriteProblem(w, r, http.StatusUnauthorized, "Missing x-uid identity header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}
