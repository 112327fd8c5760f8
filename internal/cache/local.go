package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cachette-io/cachette/internal/config"
	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/types"
)

// localEntry wraps a stored value with its expiry deadline. A zero
// expiresAt means the entry never expires.
type localEntry struct {
	value     any
	expiresAt time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LocalCache is the in-process tier: a bounded LRU with per-entry TTL and
// an advisory, process-scoped lock substrate.
type LocalCache struct {
	mu      sync.Mutex
	store   *lru.Cache[string, localEntry]
	config  config.LocalConfig
	emitter *events.Emitter
	logger  *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	closed atomic.Bool
}

// NewLocalCache creates the local tier with the given configuration.
func NewLocalCache(cfg config.LocalConfig, emitter *events.Emitter, logger *slog.Logger) (*LocalCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}

	lc := &LocalCache{
		config:  cfg,
		emitter: emitter,
		logger:  logger.With("component", "local-cache"),
	}

	store, err := lru.NewWithEvict[string, localEntry](cfg.MaxItems, func(key string, _ localEntry) {
		lc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}

	lc.store = store
	return lc, nil
}

// Name returns the tier name.
func (c *LocalCache) Name() string {
	return "local"
}

// Get retrieves a value, treating expired entries as absent.
func (c *LocalCache) Get(ctx context.Context, key string) (any, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	c.mu.Lock()
	entry, ok := c.store.Get(key)
	if ok && entry.expired(time.Now()) {
		c.store.Remove(key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	c.hits.Add(1)
	c.emitter.Emit(events.EventGet, key, entry.value)
	return entry.value, nil
}

// Set stores a value for ttl. A zero ttl applies the configured default max
// age; the entry never expires only when that max age is zero too. The
// absence sentinel is unstorable; attempting to store it warns and reports
// false.
func (c *LocalCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}

	if types.IsNoValue(value) {
		c.warn(fmt.Sprintf("refusing to store absent value under %q", key))
		return false
	}

	entry := localEntry{value: value}
	effectiveTTL := ttl
	if effectiveTTL == 0 {
		effectiveTTL = c.config.MaxAge
	}
	if effectiveTTL > 0 {
		entry.expiresAt = time.Now().Add(effectiveTTL)
	}

	c.mu.Lock()
	c.store.Add(key, entry)
	c.mu.Unlock()

	c.sets.Add(1)
	c.emitter.Emit(events.EventSet, key, value)
	return true
}

// GetTTL reports the entry's remaining lifetime without refreshing its
// recency.
func (c *LocalCache) GetTTL(ctx context.Context, key string) types.TTL {
	if c.closed.Load() {
		return types.MissingTTL()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store.Peek(key)
	if !ok {
		return types.MissingTTL()
	}

	now := time.Now()
	if entry.expired(now) {
		c.store.Remove(key)
		return types.MissingTTL()
	}
	if entry.expiresAt.IsZero() {
		return types.NoExpiryTTL()
	}
	return types.RemainingTTL(entry.expiresAt.Sub(now))
}

// Delete removes a key.
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	c.mu.Lock()
	c.store.Remove(key)
	c.mu.Unlock()

	c.emitter.Emit(events.EventDel, key)
	return nil
}

// Clear removes every entry.
func (c *LocalCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	c.mu.Lock()
	c.store.Purge()
	c.mu.Unlock()
	return nil
}

// ClearMemory is identical to Clear for this tier.
func (c *LocalCache) ClearMemory(ctx context.Context) error {
	return c.Clear(ctx)
}

// ItemCount returns the number of live (unexpired) entries.
func (c *LocalCache) ItemCount(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()
	return int64(c.store.Len()), nil
}

// purgeExpiredLocked drops expired entries. Callers hold c.mu.
func (c *LocalCache) purgeExpiredLocked() {
	now := time.Now()
	for _, key := range c.store.Keys() {
		if entry, ok := c.store.Peek(key); ok && entry.expired(now) {
			c.store.Remove(key)
		}
	}
}

// WaitForReplication has nothing to wait for on an in-process tier.
func (c *LocalCache) WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error) {
	return 0, nil
}

// IsLockingSupported reports that this tier offers advisory locks.
func (c *LocalCache) IsLockingSupported() bool {
	return true
}

type localLockHandle struct {
	name      string
	expiresAt time.Time
}

func (h *localLockHandle) LockName() string     { return h.name }
func (h *localLockHandle) ExpiresAt() time.Time { return h.expiresAt }

// Lock acquires a process-scoped advisory lock, polling until the name is
// free. The wait is bounded by the configured lock wait; exceeding it fails
// with ErrLockTimeout. The retry flag is meaningless here and ignored.
func (c *LocalCache) Lock(ctx context.Context, name string, ttl time.Duration, retry bool) (types.LockHandle, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	deadline := time.Now().Add(c.config.LockWait)
	pollInterval := c.config.LockPollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}

	for {
		if handle, ok := c.tryLock(name, ttl); ok {
			return handle, nil
		}

		if time.Now().After(deadline) {
			return nil, types.NewCacheError("Lock", name, c.Name(), types.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// tryLock inserts the lock placeholder if the name is absent from the
// stale-purged view.
func (c *LocalCache) tryLock(name string, ttl time.Duration) (types.LockHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.store.Peek(name); ok && !entry.expired(now) {
		return nil, false
	}

	expiresAt := now.Add(ttl)
	c.store.Add(name, localEntry{value: lockPlaceholder, expiresAt: expiresAt})
	return &localLockHandle{name: name, expiresAt: expiresAt}, true
}

// Unlock deletes the lock placeholder. Releasing an expired handle is a
// no-op.
func (c *LocalCache) Unlock(ctx context.Context, handle types.LockHandle) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if handle == nil {
		return types.ErrLockNotHeld
	}
	if exp := handle.ExpiresAt(); !exp.IsZero() && !time.Now().Before(exp) {
		return nil
	}

	c.mu.Lock()
	c.store.Remove(handle.LockName())
	c.mu.Unlock()
	return nil
}

// HasLock scans all live keys for the prefix. The tier is small and
// in-process, so a full scan is acceptable.
func (c *LocalCache) HasLock(ctx context.Context, prefix string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range c.store.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := c.store.Peek(key); ok && !entry.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the tier.
func (c *LocalCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	c.store.Purge()
	c.mu.Unlock()
	return nil
}

// Stats returns tier counters.
func (c *LocalCache) Stats() LocalCacheStats {
	return LocalCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *LocalCache) warn(msg string, details ...any) {
	c.logger.Warn(msg)
	args := append([]any{msg}, details...)
	c.emitter.Emit(events.EventWarn, args...)
}

// LocalCacheStats captures local tier counters.
type LocalCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
}

// lockPlaceholder marks LRU entries that exist only to hold a lock name.
var lockPlaceholder any = struct{ lock bool }{lock: true}

var _ types.Tier = (*LocalCache)(nil)
