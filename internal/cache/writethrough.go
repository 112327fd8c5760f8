package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/metrics"
	"github.com/cachette-io/cachette/internal/types"
)

// WriteThroughCache layers the local tier in front of the remote one: every
// write lands in both, reads prefer local and promote remote hits with their
// remaining lifetime. Entries cached locally are not invalidated by remote
// mutations made in other processes; that staleness window is the accepted
// cost of the local tier.
type WriteThroughCache struct {
	local  types.Tier
	remote types.Tier

	emitter  *events.Emitter
	logger   *slog.Logger
	reporter *metrics.Reporter

	closed atomic.Bool
}

// NewWriteThroughCache composes the two tiers. reporter may be nil to
// disable hit/miss accounting.
func NewWriteThroughCache(local, remote types.Tier, reporter *metrics.Reporter, emitter *events.Emitter, logger *slog.Logger) *WriteThroughCache {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	if reporter != nil {
		reporter.Start()
	}
	return &WriteThroughCache{
		local:    local,
		remote:   remote,
		emitter:  emitter,
		logger:   logger.With("component", "write-through-cache"),
		reporter: reporter,
	}
}

// Name returns the tier name.
func (c *WriteThroughCache) Name() string {
	return "write-through"
}

// Set writes both tiers with the same ttl and reports whether both writes
// landed.
func (c *WriteThroughCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	remoteOK := c.remote.Set(ctx, key, value, ttl)
	localOK := c.local.Set(ctx, key, value, ttl)
	return remoteOK && localOK
}

// Get serves from the local tier when possible. On a local miss the remote
// value and its remaining lifetime are fetched concurrently; a remote hit is
// promoted into the local tier under that remaining lifetime so both tiers
// expire together.
func (c *WriteThroughCache) Get(ctx context.Context, key string) (any, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	if value, err := c.local.Get(ctx, key); err == nil {
		if c.reporter != nil {
			c.reporter.RecordLocalHit()
		}
		return value, nil
	}

	ttlCh := make(chan types.TTL, 1)
	go func() {
		ttlCh <- c.remote.GetTTL(ctx, key)
	}()

	value, err := c.remote.Get(ctx, key)
	ttl := <-ttlCh
	if err != nil {
		if c.reporter != nil {
			c.reporter.RecordDoubleMiss()
		}
		return nil, types.ErrCacheMiss
	}

	if c.reporter != nil {
		c.reporter.RecordRemoteHit()
	}
	c.promote(ctx, key, value, ttl)
	return value, nil
}

// promote writes a remote hit into the local tier with its remaining
// lifetime, so the local copy never outlives the remote entry.
func (c *WriteThroughCache) promote(ctx context.Context, key string, value any, ttl types.TTL) {
	var remaining time.Duration
	if ttl.State == types.TTLRemaining {
		remaining = ttl.Remaining
		if remaining <= 0 {
			return
		}
	}
	c.local.Set(ctx, key, value, remaining)
	c.logger.Debug("promoted remote entry into local tier", "key", key)
}

// GetTTL prefers the remote tier's answer, falling back to the local tier
// when the remote has no entry.
func (c *WriteThroughCache) GetTTL(ctx context.Context, key string) types.TTL {
	if c.closed.Load() {
		return types.MissingTTL()
	}
	if ttl := c.remote.GetTTL(ctx, key); ttl.State != types.TTLMissing {
		return ttl
	}
	return c.local.GetTTL(ctx, key)
}

// Delete removes the key from both tiers.
func (c *WriteThroughCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return errors.Join(
		c.local.Delete(ctx, key),
		c.remote.Delete(ctx, key),
	)
}

// Clear empties both tiers.
func (c *WriteThroughCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return errors.Join(
		c.local.Clear(ctx),
		c.remote.Clear(ctx),
	)
}

// ClearMemory drops only in-process state: the local tier is emptied, the
// remote store is untouched.
func (c *WriteThroughCache) ClearMemory(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return errors.Join(
		c.local.ClearMemory(ctx),
		c.remote.ClearMemory(ctx),
	)
}

// ItemCount sums both tiers. Entries present in both are counted twice; the
// figure is a capacity gauge, not a logical key count.
func (c *WriteThroughCache) ItemCount(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	localCount, err := c.local.ItemCount(ctx)
	if err != nil {
		return 0, err
	}
	remoteCount, err := c.remote.ItemCount(ctx)
	if err != nil {
		return 0, err
	}
	return localCount + remoteCount, nil
}

// WaitForReplication delegates to the remote tier.
func (c *WriteThroughCache) WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	return c.remote.WaitForReplication(ctx, replicas, timeout)
}

// IsLockingSupported reports false: callers needing distributed locks use
// the bare remote tier.
func (c *WriteThroughCache) IsLockingSupported() bool {
	return false
}

// Lock is unsupported on this tier.
func (c *WriteThroughCache) Lock(ctx context.Context, name string, ttl time.Duration, retry bool) (types.LockHandle, error) {
	return nil, types.NewCacheError("Lock", name, c.Name(), types.ErrLockingUnsupported)
}

// Unlock is unsupported on this tier.
func (c *WriteThroughCache) Unlock(ctx context.Context, handle types.LockHandle) error {
	return types.NewCacheError("Unlock", "", c.Name(), types.ErrLockingUnsupported)
}

// HasLock is unsupported on this tier.
func (c *WriteThroughCache) HasLock(ctx context.Context, prefix string) (bool, error) {
	return false, types.NewCacheError("HasLock", prefix, c.Name(), types.ErrLockingUnsupported)
}

// Close stops the reporter and releases both tiers.
func (c *WriteThroughCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.reporter != nil {
		c.reporter.Stop()
	}
	return errors.Join(
		c.local.Close(),
		c.remote.Close(),
	)
}

// MetricsSnapshot returns the reporter's counters. The zero value is
// returned when metrics are disabled.
func (c *WriteThroughCache) MetricsSnapshot() metrics.Counters {
	if c.reporter == nil {
		return metrics.Counters{}
	}
	return c.reporter.Snapshot()
}

var _ types.Tier = (*WriteThroughCache)(nil)
