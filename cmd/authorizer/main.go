// Command authorizer is the API Gateway TOKEN authorizer lambda.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/app"
	"github.com/upb/todo-backend/config"
	"github.com/upb/todo-backend/handlers"
	"github.com/upb/todo-backend/internal/observability"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewAuthorizer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorizer: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorizer: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	handler, stack, err := newHandler(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize authorizer", zap.Error(err))
	}
	defer func() { _ = stack.Close() }()

	lambda.Start(handler.Handle)
}

// newHandler builds the handler and preloads the key directory during the
// init phase so the first invocation does not pay for the fetch.
func newHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*handlers.AuthorizerHandler, *app.AuthorizerStack, error) {
	stack, err := app.NewAuthorizerStack(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	_ = stack.Warm(ctx)

	return handlers.NewAuthorizerHandler(stack.Authorizer, logger), stack, nil
}
