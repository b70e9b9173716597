package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/todo-backend/config"
	"github.com/upb/todo-backend/middleware"
	"github.com/upb/todo-backend/repositories"
	"github.com/upb/todo-backend/repositories/postgres"
	"github.com/upb/todo-backend/services"
	"github.com/upb/todo-backend/storage"
)

// Dependencies holds all API dependencies. This is the central wiring point
// for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Todos     repositories.TodoRepository
	TxManager repositories.TransactionManager

	Signer storage.AttachmentSigner

	// Auth
	Auth           *AuthorizerStack
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	TodoService *services.TodoService
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires everything on top of an already opened database
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := deps.DB.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initAuth(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}

	deps.TodoService = services.NewTodoService(&repositories.Repositories{Todos: deps.Todos}, deps.TxManager, deps.Signer, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Todos = repos.Todos
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Bucket == "" {
		d.Logger.Warn("ATTACHMENT_S3_BUCKET not set, attachment uploads disabled")
		d.Signer = disabledSigner{}
		return nil
	}

	signer, err := storage.NewS3AttachmentSigner(ctx, cfg.Storage, d.Logger)
	if err != nil {
		return err
	}
	d.Signer = signer
	return nil
}

func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) error {
	stack, err := NewAuthorizerStack(cfg, d.Logger)
	if err != nil {
		return err
	}
	_ = stack.Warm(ctx)

	d.Auth = stack
	d.AuthMiddleware = middleware.NewAuthMiddleware(stack.Authorizer, d.Logger)
	return nil
}

// disabledSigner refuses every upload when no bucket is configured
type disabledSigner struct{}

func (disabledSigner) PresignedUploadURL(context.Context, string) (string, error) {
	return "", errors.New("attachment storage is not configured")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Auth != nil {
		if err := d.Auth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Auth = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
