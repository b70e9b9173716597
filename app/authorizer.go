package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/authorizer"
	"github.com/upb/todo-backend/authorizer/redisstore"
	"github.com/upb/todo-backend/config"
)

// AuthorizerStack is the bearer-token authorizer together with the
// directory tiers it reads through.
type AuthorizerStack struct {
	Authorizer *authorizer.Authorizer
	Cache      *authorizer.DirectoryCache // nil when AUTH_CACHE_ENABLED=false
	redis      *redis.Client
	logger     *zap.Logger
}

// NewAuthorizerStack wires client -> optional redis tier -> optional in-process cache -> authorizer
func NewAuthorizerStack(cfg *config.Config, logger *zap.Logger) (*AuthorizerStack, error) {
	verifier, err := authorizer.NewVerifier(cfg.Authorizer.VerifierConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	stack := &AuthorizerStack{logger: logger}

	var fetcher authorizer.KeyDirectoryFetcher = authorizer.NewDirectoryClient(authorizer.DirectoryClientConfig{
		URL:     cfg.Authorizer.JWKSURL,
		Timeout: cfg.Authorizer.FetchTimeout,
	}, logger)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		stack.redis = redis.NewClient(opts)
		fetcher = redisstore.New(stack.redis, fetcher, redisstore.Config{
			Key:                cfg.Redis.Key,
			TTL:                cfg.Authorizer.CacheTTL,
			MinRefreshInterval: cfg.Authorizer.MinRefreshInterval,
		}, logger)
		logger.Info("shared key directory cache enabled", zap.String("key", cfg.Redis.Key))
	}

	if cfg.Authorizer.CacheEnabled {
		stack.Cache = authorizer.NewDirectoryCache(fetcher, cfg.Authorizer.CacheConfig(), logger)
		fetcher = stack.Cache
	}

	stack.Authorizer = authorizer.New(fetcher, verifier, logger,
		authorizer.WithFetchTimeout(cfg.Authorizer.FetchTimeout))

	logger.Info("authorizer initialized",
		zap.String("jwks_url", cfg.Authorizer.JWKSURL),
		zap.String("algorithm", verifier.Algorithm()),
		zap.Bool("cache_enabled", cfg.Authorizer.CacheEnabled),
	)
	return stack, nil
}

// Warm preloads the key directory. A failure is logged and returned; the
// authorizer still works and will fetch on the first request.
func (s *AuthorizerStack) Warm(ctx context.Context) error {
	if s.Cache == nil {
		return nil
	}
	if err := s.Cache.Warm(ctx); err != nil {
		s.logger.Warn("failed to preload key directory", zap.Error(err))
		return err
	}
	return nil
}

// Close releases the redis connection, if any
func (s *AuthorizerStack) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}
