package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

// PrincipalKey is the context key for the authenticated principal id
const PrincipalKey contextKey = "principal_id"

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithPrincipal adds the authenticated principal id to the context
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principalID)
}

// PrincipalFromContext returns the principal id, or "" for unauthenticated requests
func PrincipalFromContext(ctx context.Context) string {
	if principalID, ok := ctx.Value(PrincipalKey).(string); ok {
		return principalID
	}
	return ""
}
