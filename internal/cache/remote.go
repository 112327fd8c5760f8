package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cachette-io/cachette/internal/codec"
	"github.com/cachette-io/cachette/internal/config"
	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/types"
)

const disconnectErrorThreshold = 5

// RemoteCache is the Redis-backed tier. Reads route through an optional
// replica client; writes always hit the writer. Transport failures degrade
// reads and writes per the tier contract and the supervision loop probes for
// recovery at a fixed interval.
type RemoteCache struct {
	writer *redis.Client
	reader *redis.Client

	config  config.RemoteConfig
	emitter *events.Emitter
	logger  *slog.Logger

	connected atomic.Bool
	closed    atomic.Bool

	mu            sync.Mutex
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	readyOnce sync.Once
	readyCh   chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup

	locks *redlockControllers

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewRemoteCache dials the writer named by url and, when cfg.ReadURL is set,
// a separate reader. Only redis:// and rediss:// URLs are accepted. A failed
// initial dial does not fail construction; the tier starts degraded and the
// supervision loop keeps probing.
func NewRemoteCache(url string, cfg config.RemoteConfig, emitter *events.Emitter, logger *slog.Logger) (*RemoteCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}

	writer, err := dialClient(url, cfg.ConnectionTimeout)
	if err != nil {
		return nil, err
	}

	reader := writer
	if readURL := cfg.ReadURL.Value(); readURL != "" {
		reader, err = dialClient(readURL, cfg.ConnectionTimeout)
		if err != nil {
			return nil, err
		}
	}

	rc := &RemoteCache{
		writer:  writer,
		reader:  reader,
		config:  cfg,
		emitter: emitter,
		logger:  logger.With("component", "remote-cache"),
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
		locks:   newRedlockControllers(writer, cfg.Redlock),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if err := writer.Ping(ctx).Err(); err != nil {
		rc.logger.Warn("initial connection failed", "error", err)
		rc.setError(err)
	} else {
		rc.connected.Store(true)
		rc.markReady()
		rc.logger.Info("connected", "addr", writer.Options().Addr)
	}

	if cfg.ReconnectInterval > 0 {
		rc.wg.Add(1)
		go rc.supervisionWorker()
	}

	return rc, nil
}

func dialClient(url string, connectionTimeout time.Duration) (*redis.Client, error) {
	if !config.IsRedisURL(url) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidURL, url)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if connectionTimeout > 0 {
		opts.DialTimeout = connectionTimeout
	}
	return redis.NewClient(opts), nil
}

// Name returns the tier name.
func (c *RemoteCache) Name() string {
	return "redis"
}

// IsAvailable reports whether the tier currently believes the store is up.
func (c *RemoteCache) IsAvailable() bool {
	return c.connected.Load()
}

// IsReady blocks until the store has been reachable at least once, or ctx
// expires. Once resolved it stays resolved across later disconnects.
func (c *RemoteCache) IsReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get fetches and decodes a value. Absence and transport failures both read
// as a miss; only the latter warns.
func (c *RemoteCache) Get(ctx context.Context, key string) (any, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	if !c.connected.Load() {
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	body, err := c.reader.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		c.handleReadError(err)
		c.warn(fmt.Sprintf("get %q failed, treating as miss", key), err)
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	value, err := codec.Decode(body, true)
	if err != nil {
		c.warn(fmt.Sprintf("get %q returned an undecodable body, treating as miss", key), err)
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	c.hits.Add(1)
	c.clearError()
	c.emitter.Emit(events.EventGet, key, value)
	return value, nil
}

// Set encodes and stores a value for ttl (zero means no expiration). Bodies
// over the large-value threshold warn but are written anyway. Unencodable
// values and transport failures report false.
func (c *RemoteCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}

	if types.IsNoValue(value) {
		c.warn(fmt.Sprintf("refusing to store absent value under %q", key))
		return false
	}

	body, err := codec.Encode(value)
	if err != nil {
		c.warn(fmt.Sprintf("value under %q cannot be encoded", key), err)
		return false
	}

	if c.config.LargeValueThreshold > 0 && len(body) > c.config.LargeValueThreshold {
		c.warn(fmt.Sprintf("value under %q is %d bytes, over the %d byte threshold", key, len(body), c.config.LargeValueThreshold))
	}

	if !c.connected.Load() {
		return false
	}

	if err := c.writer.Set(ctx, key, body, ttl).Err(); err != nil {
		c.handleWriteError(err)
		c.warn(fmt.Sprintf("set %q failed", key), err)
		return false
	}

	c.sets.Add(1)
	c.clearError()
	c.emitter.Emit(events.EventSet, key, value)
	return true
}

// GetTTL reports the remaining lifetime of key via PTTL. Transport failures
// degrade to missing.
func (c *RemoteCache) GetTTL(ctx context.Context, key string) types.TTL {
	if c.closed.Load() || !c.connected.Load() {
		return types.MissingTTL()
	}

	d, err := c.reader.PTTL(ctx, key).Result()
	if err != nil {
		c.handleReadError(err)
		c.warn(fmt.Sprintf("pttl %q failed, treating as missing", key), err)
		return types.MissingTTL()
	}

	// go-redis passes the store's no-key and no-expiry markers through as
	// raw -2 and -1.
	switch d {
	case -2:
		return types.MissingTTL()
	case -1:
		return types.NoExpiryTTL()
	default:
		return types.RemainingTTL(d)
	}
}

// Delete removes a key.
func (c *RemoteCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if !c.connected.Load() {
		return types.NewCacheError("Delete", key, c.Name(), types.ErrRemoteUnavailable)
	}

	if err := c.writer.Del(ctx, key).Err(); err != nil {
		c.handleWriteError(err)
		return types.NewCacheError("Delete", key, c.Name(), err)
	}

	c.deletes.Add(1)
	c.clearError()
	c.emitter.Emit(events.EventDel, key)
	return nil
}

// Clear flushes the selected database.
func (c *RemoteCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if !c.connected.Load() {
		return types.NewCacheError("Clear", "", c.Name(), types.ErrRemoteUnavailable)
	}

	if err := c.writer.FlushDB(ctx).Err(); err != nil {
		c.handleWriteError(err)
		return types.NewCacheError("Clear", "", c.Name(), err)
	}

	c.clearError()
	return nil
}

// ClearMemory is a no-op: this tier holds no in-process state.
func (c *RemoteCache) ClearMemory(ctx context.Context) error {
	return nil
}

// ItemCount returns DBSIZE of the selected database.
func (c *RemoteCache) ItemCount(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	if !c.connected.Load() {
		return 0, types.NewCacheError("ItemCount", "", c.Name(), types.ErrRemoteUnavailable)
	}

	n, err := c.reader.DBSize(ctx).Result()
	if err != nil {
		c.handleReadError(err)
		return 0, types.NewCacheError("ItemCount", "", c.Name(), err)
	}

	c.clearError()
	return n, nil
}

// WaitForReplication blocks until replicas have acknowledged prior writes or
// timeout elapses, and returns the acknowledged count.
func (c *RemoteCache) WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	if !c.connected.Load() {
		return 0, types.NewCacheError("WaitForReplication", "", c.Name(), types.ErrRemoteUnavailable)
	}

	acked, err := c.writer.Wait(ctx, replicas, timeout).Result()
	if err != nil {
		c.handleWriteError(err)
		return 0, types.NewCacheError("WaitForReplication", "", c.Name(), err)
	}

	c.clearError()
	c.emitter.Emit(events.EventWait, int(acked), replicas)
	return int(acked), nil
}

// Close stops the supervision loop and releases the clients.
func (c *RemoteCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)

	close(c.stopCh)
	c.wg.Wait()

	var errs []error
	if c.reader != c.writer {
		if err := c.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stats returns tier counters.
func (c *RemoteCache) Stats() RemoteCacheStats {
	return RemoteCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
	}
}

// RemoteCacheStats captures remote tier counters.
type RemoteCacheStats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
}

// LastError returns the most recent transport error and when it happened.
func (c *RemoteCache) LastError() (error, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError, c.lastErrorTime
}

func (c *RemoteCache) supervisionWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.probe()
		}
	}
}

func (c *RemoteCache) probe() {
	wasConnected := c.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectionTimeout)
	defer cancel()

	if err := c.writer.Ping(ctx).Err(); err != nil {
		if wasConnected {
			c.logger.Warn("health check failed", "error", err)
			c.setError(err)
		}
		return
	}

	c.markReady()
	if !wasConnected {
		c.connected.Store(true)
		c.errorCount.Store(0)
		c.logger.Info("connection restored")
	}
}

func (c *RemoteCache) markReady() {
	c.readyOnce.Do(func() { close(c.readyCh) })
}

// isReadOnlyError reports whether the store rejected a write because it is a
// replica. That happens after a failover demotes the writer endpoint.
func isReadOnlyError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "READONLY")
}

// handleWriteError records a writer failure. A READONLY rejection marks the
// tier down immediately so the supervision loop re-probes; other errors only
// do so after the threshold.
func (c *RemoteCache) handleWriteError(err error) {
	c.recordError(err)

	if isReadOnlyError(err) {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("writer endpoint is read-only, marking disconnected", "error", err)
		}
		return
	}
	c.countError(err)
}

// handleReadError records a reader failure. READONLY does not count against
// the reader, which may legitimately be a replica.
func (c *RemoteCache) handleReadError(err error) {
	c.recordError(err)
	if isReadOnlyError(err) {
		return
	}
	c.countError(err)
}

func (c *RemoteCache) countError(err error) {
	if c.errorCount.Add(1) >= disconnectErrorThreshold {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("marked disconnected after repeated errors",
				"error_count", c.errorCount.Load(),
				"last_error", err,
			)
		}
	}
}

func (c *RemoteCache) recordError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.mu.Unlock()
}

func (c *RemoteCache) clearError() {
	if c.errorCount.Swap(0) > 0 {
		if c.connected.CompareAndSwap(false, true) {
			c.logger.Info("connection restored")
		}
	}
}

func (c *RemoteCache) setError(err error) {
	c.recordError(err)
	c.connected.Store(false)
}

func (c *RemoteCache) warn(msg string, details ...any) {
	c.logger.Warn(msg)
	args := append([]any{msg}, details...)
	c.emitter.Emit(events.EventWarn, args...)
}

var _ types.Tier = (*RemoteCache)(nil)
