package handlers

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/authorizer"
	"github.com/upb/todo-backend/middleware"
)

// AuthorizerHandler answers API Gateway TOKEN authorizer invocations
type AuthorizerHandler struct {
	authorizer middleware.RequestAuthorizer
	logger     *zap.Logger
}

// NewAuthorizerHandler creates a new AuthorizerHandler
func NewAuthorizerHandler(authz middleware.RequestAuthorizer, logger *zap.Logger) *AuthorizerHandler {
	return &AuthorizerHandler{
		authorizer: authz,
		logger:     logger,
	}
}

// Handle is the lambda entry point. It never returns an error: every failure
// is already a Deny policy.
func (h *AuthorizerHandler) Handle(ctx context.Context, event events.APIGatewayCustomAuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	rc := authorizer.RequestContext{MethodARN: event.MethodArn}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		rc.RequestID = lc.AwsRequestID
	}

	decision := h.authorizer.AuthorizeRequest(ctx, event.AuthorizationToken, rc)
	if decision.Allowed() {
		h.logger.Info("authorization allowed",
			zap.String("request_id", rc.RequestID),
			zap.String("method_arn", rc.MethodARN),
			zap.String("principal_id", decision.PrincipalID))
	}

	return decision.Policy(""), nil
}
