package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/todo-backend/authorizer"
	"github.com/upb/todo-backend/utils"
)

// RequestAuthorizer turns a raw Authorization header into a decision.
// *authorizer.Authorizer satisfies it.
type RequestAuthorizer interface {
	AuthorizeRequest(ctx context.Context, credential string, rc authorizer.RequestContext) authorizer.Decision
}

// AuthMiddleware gates HTTP routes on the bearer-token authorizer
type AuthMiddleware struct {
	authorizer RequestAuthorizer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authz RequestAuthorizer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authz,
		logger:     logger,
	}
}

// RequireAuth rejects requests the authorizer denies with a generic 401.
// Allowed requests carry the principal id in their context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rc := authorizer.RequestContext{
			RequestID: GetRequestIDFromContext(ctx),
			MethodARN: r.Method + " " + r.URL.Path,
			SourceIP:  r.RemoteAddr,
		}

		// the authorizer logs the reason; the response stays generic
		decision := m.authorizer.AuthorizeRequest(ctx, r.Header.Get("Authorization"), rc)
		if !decision.Allowed() {
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		m.logger.Debug("request authorized",
			zap.String("request_id", rc.RequestID),
			zap.String("principal_id", decision.PrincipalID))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, decision.PrincipalID)))
	})
}
