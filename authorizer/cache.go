package authorizer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheState describes the lifecycle position of a DirectoryCache
type CacheState int

const (
	CacheEmpty CacheState = iota
	CacheFresh
	CacheStale
	CacheRefreshing
)

// String returns the state name
func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheFresh:
		return "fresh"
	case CacheStale:
		return "stale"
	case CacheRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// DirectoryInvalidator is implemented by fetchers that keep their own copy
// of the directory and must drop it before a forced refresh.
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// DirectoryCacheConfig holds configuration for DirectoryCache
type DirectoryCacheConfig struct {
	TTL                time.Duration // how long a snapshot is fresh
	StaleGrace         time.Duration // how long past TTL a snapshot may still be served during refresh
	MinRefreshInterval time.Duration // forced refreshes are skipped for snapshots younger than this
	RefreshTimeout     time.Duration // bound on a single refresh
}

const (
	refreshKey = "directory"
	forcedKey  = "directory:forced"
)

// snapshot is swapped in whole; readers never see a partial directory
type snapshot struct {
	dir      *KeyDirectory
	loadedAt time.Time
}

// DirectoryCache keeps the last good key directory and refreshes it in the
// background. Concurrent readers keep using the previous snapshot while a
// refresh is in flight and only one fetch runs at a time.
type DirectoryCache struct {
	fetcher KeyDirectoryFetcher
	cfg     DirectoryCacheConfig
	logger  *zap.Logger
	now     func() time.Time

	current    atomic.Pointer[snapshot]
	refreshing atomic.Int32
	background atomic.Bool
	group      singleflight.Group
}

// NewDirectoryCache wraps fetcher with a TTL cache
func NewDirectoryCache(fetcher KeyDirectoryFetcher, cfg DirectoryCacheConfig, logger *zap.Logger) *DirectoryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.StaleGrace < 0 {
		cfg.StaleGrace = 0
	}
	if cfg.MinRefreshInterval < 0 {
		cfg.MinRefreshInterval = 0
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DirectoryCache{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch returns the cached directory, refreshing it when needed. A stale
// snapshot within the grace window is returned immediately while a
// background refresh runs; an empty or expired cache blocks on the refresh.
func (c *DirectoryCache) Fetch(ctx context.Context) (*KeyDirectory, error) {
	if snap := c.current.Load(); snap != nil {
		age := c.now().Sub(snap.loadedAt)
		if age < c.cfg.TTL {
			return snap.dir, nil
		}
		if age < c.cfg.TTL+c.cfg.StaleGrace {
			c.refreshInBackground()
			return snap.dir, nil
		}
	}
	return c.refresh(ctx, refreshKey, c.fetcher.Fetch)
}

// ForceRefresh fetches a new directory regardless of TTL. It is used once
// per invocation when a token names a key the cached directory does not
// have. Snapshots younger than MinRefreshInterval are returned as-is so a
// stream of unknown kids cannot hammer the identity provider.
func (c *DirectoryCache) ForceRefresh(ctx context.Context) (*KeyDirectory, error) {
	if snap := c.current.Load(); snap != nil && c.now().Sub(snap.loadedAt) < c.cfg.MinRefreshInterval {
		c.logger.Debug("forced directory refresh skipped, snapshot is recent",
			zap.Time("loaded_at", snap.loadedAt))
		return snap.dir, nil
	}

	if r, ok := c.fetcher.(directoryRefresher); ok {
		return c.refresh(ctx, forcedKey, r.ForceRefresh)
	}
	if inv, ok := c.fetcher.(DirectoryInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			c.logger.Warn("failed to invalidate shared key directory", zap.Error(err))
		}
	}
	return c.refresh(ctx, forcedKey, c.fetcher.Fetch)
}

// Warm loads the directory ahead of the first request
func (c *DirectoryCache) Warm(ctx context.Context) error {
	_, err := c.refresh(ctx, refreshKey, c.fetcher.Fetch)
	return err
}

// State reports the current cache state
func (c *DirectoryCache) State() CacheState {
	if c.refreshing.Load() > 0 {
		return CacheRefreshing
	}
	snap := c.current.Load()
	if snap == nil {
		return CacheEmpty
	}
	if c.now().Sub(snap.loadedAt) < c.cfg.TTL {
		return CacheFresh
	}
	return CacheStale
}

// refresh runs at most one fetch per key at a time; concurrent callers share
// its result. Forced refreshes use their own key so they never join a
// regular refresh that started before the invalidation. The fetch is
// detached from the caller's cancellation so one abandoned caller does not
// fail the others, but it is bounded by RefreshTimeout. A failed fetch
// leaves the previous snapshot in place.
func (c *DirectoryCache) refresh(ctx context.Context, key string, fetch func(context.Context) (*KeyDirectory, error)) (*KeyDirectory, error) {
	ch := c.group.DoChan(key, func() (val interface{}, err error) {
		c.refreshing.Add(1)
		defer c.refreshing.Add(-1)

		// singleflight re-panics on another goroutine, out of reach of the caller's recover
		defer func() {
			if r := recover(); r != nil {
				val, err = nil, newError(KindInternal, "fetch directory", fmt.Errorf("panic: %v", r))
				c.logger.Error("key directory refresh panicked", zap.Error(err))
			}
		}()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
		defer cancel()

		dir, err := fetch(fetchCtx)
		if err != nil {
			c.logger.Warn("key directory refresh failed",
				zap.String("key", key),
				zap.String("kind", string(KindOf(err))),
				zap.Error(err))
			return nil, err
		}
		if dir == nil {
			return nil, newError(KindDirectoryUnavailable, "fetch directory", errors.New("fetcher returned no directory"))
		}

		stored := c.store(dir)
		c.logger.Debug("key directory refreshed", zap.String("key", key), zap.Int("keys", stored.Len()))
		return stored, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeyDirectory), nil
	case <-ctx.Done():
		return nil, newError(KindDirectoryUnavailable, "fetch directory", ctx.Err())
	}
}

// store swaps in dir unless the current snapshot is newer, and returns the
// directory now being served. A snapshot ages from the directory's own fetch
// time, so a copy that already sat in a shared tier is not treated as new.
func (c *DirectoryCache) store(dir *KeyDirectory) *KeyDirectory {
	now := c.now()
	loadedAt := dir.FetchedAt()
	if loadedAt.IsZero() || loadedAt.After(now) {
		loadedAt = now
	}
	next := &snapshot{dir: dir, loadedAt: loadedAt}

	for {
		cur := c.current.Load()
		if cur != nil && cur.loadedAt.After(loadedAt) {
			return cur.dir
		}
		if c.current.CompareAndSwap(cur, next) {
			return dir
		}
	}
}

func (c *DirectoryCache) refreshInBackground() {
	if !c.background.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.background.Store(false)
		_, _ = c.refresh(context.Background(), refreshKey, c.fetcher.Fetch)
	}()
}
