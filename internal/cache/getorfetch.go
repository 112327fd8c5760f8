package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cachette-io/cachette/internal/types"
)

// lockNamePrefix namespaces the distributed lock guarding a fetch away from
// the cached entry itself.
const lockNamePrefix = "lock__"

// Compute produces the value to cache when no tier holds it.
type Compute func(ctx context.Context) (any, error)

// FetchOptions tune a single coalesced fetch.
type FetchOptions struct {
	// LockTTL, when positive and the tier supports locking, holds a
	// distributed lock around the fetch so at most one process computes.
	// The lock bounds the critical section, not the compute itself.
	LockTTL time.Duration
	// CacheError decides whether a compute failure is stored under the key.
	// A nil predicate also means stored errors read as absent instead of
	// being re-thrown.
	CacheError func(error) bool
}

// Coordinator collapses concurrent fetches of the same key into one compute
// per process, with an optional distributed lock extending that guarantee
// across processes.
type Coordinator struct {
	tier   types.Tier
	group  singleflight.Group
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the given tier.
func NewCoordinator(tier types.Tier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		tier:   tier,
		logger: logger.With("component", "coordinator"),
	}
}

// GetOrFetch returns the cached value under key, or computes, stores and
// returns it. Concurrent callers for the same key share one settlement: the
// first caller runs compute, the rest wait and observe the same value or
// error. A compute returning the absence sentinel is handed back unstored,
// so later callers recompute.
func (c *Coordinator) GetOrFetch(ctx context.Context, key string, ttl time.Duration, compute Compute, opts FetchOptions) (any, error) {
	if value, found, err := c.lookup(ctx, key, opts); err != nil || found {
		return value, err
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key, ttl, compute, opts)
	})
	return value, err
}

// lookup is the read-through step. A stored error is re-thrown only when the
// caller enabled error caching; otherwise it reads as absent, so an
// error-caching invocation and a plain one can share a key.
func (c *Coordinator) lookup(ctx context.Context, key string, opts FetchOptions) (any, bool, error) {
	value, err := c.tier.Get(ctx, key)
	if err != nil {
		if types.IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if cached, ok := value.(*types.CachedError); ok {
		if opts.CacheError != nil {
			return nil, true, cached
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Coordinator) fetch(ctx context.Context, key string, ttl time.Duration, compute Compute, opts FetchOptions) (any, error) {
	if opts.LockTTL > 0 && c.tier.IsLockingSupported() {
		handle, err := c.tier.Lock(ctx, lockNamePrefix+key, opts.LockTTL, true)
		if err != nil {
			return nil, err
		}
		defer c.unlock(ctx, handle)

		// Another process may have computed and stored while this one was
		// waiting on the lock.
		if value, found, err := c.lookup(ctx, key, opts); err != nil || found {
			return value, err
		}
	}

	value, err := compute(ctx)
	if err != nil {
		if opts.CacheError != nil && opts.CacheError(err) {
			c.tier.Set(ctx, key, types.WrapError(err), ttl)
		}
		return nil, err
	}

	if !types.IsNoValue(value) {
		c.tier.Set(ctx, key, value, ttl)
	}
	return value, nil
}

// unlock releases the fetch lock even when the surrounding context has been
// canceled.
func (c *Coordinator) unlock(ctx context.Context, handle types.LockHandle) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.tier.Unlock(releaseCtx, handle); err != nil {
		c.logger.Warn("releasing fetch lock failed", "lock", handle.LockName(), "error", err)
	}
}
