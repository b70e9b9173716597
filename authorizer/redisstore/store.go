// Package redisstore shares the signing-key directory between authorizer
// instances through Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/authorizer"
)

const (
	defaultKey = "todo:authorizer:jwks"
	defaultTTL = 10 * time.Minute
)

// Config holds configuration for Store
type Config struct {
	Key string
	TTL time.Duration
	// MinRefreshInterval skips a forced refresh while the shared copy is younger than this
	MinRefreshInterval time.Duration
}

// Store is a KeyDirectoryFetcher that serves the directory from Redis and
// falls back to the wrapped fetcher on a miss. Redis failures are logged and
// treated as a miss.
type Store struct {
	redis  *redis.Client
	inner  authorizer.KeyDirectoryFetcher
	key         string
	ttl         time.Duration
	minInterval time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// record is the stored value: the directory JSON plus the original fetch time
type record struct {
	FetchedAt int64 `json:"fetched_at"`
	authorizer.DirectoryDocument
}

// New creates a Store in front of inner
func New(client *redis.Client, inner authorizer.KeyDirectoryFetcher, cfg Config, logger *zap.Logger) *Store {
	if cfg.Key == "" {
		cfg.Key = defaultKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MinRefreshInterval < 0 {
		cfg.MinRefreshInterval = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		redis:       client,
		inner:       inner,
		key:         cfg.Key,
		ttl:         cfg.TTL,
		minInterval: cfg.MinRefreshInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// Fetch returns the shared directory, populating it from the wrapped fetcher on a miss
func (s *Store) Fetch(ctx context.Context) (*authorizer.KeyDirectory, error) {
	if dir, ok := s.load(ctx); ok {
		return dir, nil
	}

	dir, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, dir); err != nil {
		s.logger.Warn("failed to store key directory in redis", zap.String("key", s.key), zap.Error(err))
	}
	return dir, nil
}

// ForceRefresh replaces the shared directory with a fresh copy from the
// wrapped fetcher. A shared copy younger than MinRefreshInterval is returned
// as-is, so unknown kids across all instances cannot hammer the identity provider.
func (s *Store) ForceRefresh(ctx context.Context) (*authorizer.KeyDirectory, error) {
	if s.minInterval > 0 {
		if dir, ok := s.load(ctx); ok && s.now().Sub(dir.FetchedAt()) < s.minInterval {
			s.logger.Debug("forced directory refresh skipped, shared copy is recent",
				zap.String("key", s.key), zap.Time("fetched_at", dir.FetchedAt()))
			return dir, nil
		}
	}

	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate shared key directory", zap.String("key", s.key), zap.Error(err))
	}

	dir, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, dir); err != nil {
		s.logger.Warn("failed to store key directory in redis", zap.String("key", s.key), zap.Error(err))
	}
	return dir, nil
}

// Invalidate removes the shared directory so the next Fetch reaches the identity provider
func (s *Store) Invalidate(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*authorizer.KeyDirectory, bool) {
	raw, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis unavailable, fetching key directory directly", zap.String("key", s.key), zap.Error(err))
		}
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("discarding unreadable key directory from redis", zap.String("key", s.key), zap.Error(err))
		return nil, false
	}

	// certificates are parsed again; a bad entry is a miss, never a partial directory
	dir, err := authorizer.ParseDirectory(raw, time.Unix(rec.FetchedAt, 0))
	if err != nil {
		s.logger.Warn("discarding invalid key directory from redis", zap.String("key", s.key), zap.Error(err))
		return nil, false
	}
	return dir, true
}

func (s *Store) save(ctx context.Context, dir *authorizer.KeyDirectory) error {
	b, err := json.Marshal(record{
		FetchedAt:         dir.FetchedAt().Unix(),
		DirectoryDocument: dir.Document(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode key directory: %w", err)
	}
	return s.redis.Set(ctx, s.key, b, s.ttl).Err()
}
