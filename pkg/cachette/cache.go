package cachette

import (
	"context"
	"log/slog"
	"time"

	"github.com/cachette-io/cachette/internal/cache"
	"github.com/cachette-io/cachette/internal/config"
	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/types"
)

type (
	// FetchOptions tune a single GetOrFetch call.
	FetchOptions = cache.FetchOptions
	// Compute produces the value to cache when no tier holds it.
	Compute = cache.Compute
	// Subscription identifies a registered event handler for removal.
	Subscription = events.Subscription
	// EventHandler receives the arguments of a single event emission.
	EventHandler = events.Handler
)

// Event names observable through On.
const (
	EventSet  = events.EventSet
	EventGet  = events.EventGet
	EventDel  = events.EventDel
	EventInfo = events.EventInfo
	EventWarn = events.EventWarn
	EventWait = events.EventWait
)

// Cache is the public handle over a tier composition: uniform store
// operations, coalesced get-or-fetch, key building, function binding and
// event observation.
type Cache struct {
	tier        types.Tier
	coordinator *cache.Coordinator
	emitter     *events.Emitter
	config      *config.Config
	logger      *slog.Logger
}

func newCache(tier types.Tier, cfg *config.Config, emitter *events.Emitter, logger *slog.Logger) *Cache {
	return &Cache{
		tier:        tier,
		coordinator: cache.NewCoordinator(tier, logger),
		emitter:     emitter,
		config:      cfg,
		logger:      logger,
	}
}

// Name returns the underlying tier's name.
func (c *Cache) Name() string {
	return c.tier.Name()
}

// Get returns the value under key, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	return c.tier.Get(ctx, key)
}

// Set stores value under key for ttl and reports whether the value landed in
// every tier. A zero ttl means no expiration in the remote store; the local
// tier applies its configured default max age instead.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	return c.tier.Set(ctx, key, value, ttl)
}

// GetTTL reports the remaining lifetime of key.
func (c *Cache) GetTTL(ctx context.Context, key string) TTL {
	return c.tier.GetTTL(ctx, key)
}

// Delete removes key from every tier.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.tier.Delete(ctx, key)
}

// Clear empties every tier.
func (c *Cache) Clear(ctx context.Context) error {
	return c.tier.Clear(ctx)
}

// ClearMemory drops only in-process state.
func (c *Cache) ClearMemory(ctx context.Context) error {
	return c.tier.ClearMemory(ctx)
}

// ItemCount returns the tier's entry count. On the write-through
// composition this is the sum of both tiers.
func (c *Cache) ItemCount(ctx context.Context) (int64, error) {
	return c.tier.ItemCount(ctx)
}

// WaitForReplication blocks until replicas have acknowledged prior writes
// or timeout elapses.
func (c *Cache) WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error) {
	return c.tier.WaitForReplication(ctx, replicas, timeout)
}

// IsLockingSupported reports whether the underlying tier offers advisory
// locks.
func (c *Cache) IsLockingSupported() bool {
	return c.tier.IsLockingSupported()
}

// Lock acquires the named advisory lock for ttl.
func (c *Cache) Lock(ctx context.Context, name string, ttl time.Duration, retry bool) (LockHandle, error) {
	return c.tier.Lock(ctx, name, ttl, retry)
}

// Unlock releases a held lock. Releasing an expired handle is a no-op.
func (c *Cache) Unlock(ctx context.Context, handle LockHandle) error {
	return c.tier.Unlock(ctx, handle)
}

// HasLock reports whether any live lock name starts with prefix.
func (c *Cache) HasLock(ctx context.Context, prefix string) (bool, error) {
	return c.tier.HasLock(ctx, prefix)
}

// GetOrFetch returns the cached value under key, or computes, stores and
// returns it. Concurrent callers for the same key share one compute.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, compute Compute, opts FetchOptions) (any, error) {
	return c.coordinator.GetOrFetch(ctx, key, ttl, compute, opts)
}

// BuildKey renders name and args into a deterministic cache key.
func (c *Cache) BuildKey(name string, args ...any) (string, error) {
	return buildKey(name, c.config.MaxKeyLength, args)
}

// On registers an event handler. Handlers run synchronously on the emitting
// goroutine and must not block.
func (c *Cache) On(name string, handler EventHandler) Subscription {
	return c.emitter.On(name, handler)
}

// Off removes a previously registered event handler.
func (c *Cache) Off(sub Subscription) {
	c.emitter.Off(sub)
}

// Close releases the underlying tiers.
func (c *Cache) Close() error {
	return c.tier.Close()
}
