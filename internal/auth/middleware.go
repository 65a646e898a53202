package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type ctxKey int

const (
	ownerKey ctxKey = iota
	headerKey
)

// Middleware validates the Authorization header and stores the resolved
// owner id plus the raw header (forwarded to the document store) in the
// request context.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			ownerID, err := a.Authenticate(r.Context(), header)
			if err != nil {
				slog.WarnContext(r.Context(), "authentication failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				if encErr := json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()}); encErr != nil {
					slog.Error("failed to encode auth error", "error", encErr)
				}
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey, ownerID)
			ctx = context.WithValue(ctx, headerKey, header)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerID returns the authenticated owner, or 0 when the request was not
// authenticated.
func OwnerID(ctx context.Context) int64 {
	if id, ok := ctx.Value(ownerKey).(int64); ok {
		return id
	}
	return 0
}

// Authorization returns the raw header for pass-through to the document
// store.
func Authorization(ctx context.Context) string {
	if h, ok := ctx.Value(headerKey).(string); ok {
		return h
	}
	return ""
}

// WithOwner is a test helper injecting an authenticated owner.
func WithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}
