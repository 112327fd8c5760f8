package cachette

import (
	"context"
	"time"
)

// Func is a computation whose results can be cached under a key built from
// its arguments.
type Func func(ctx context.Context, args ...any) (any, error)

// FuncOption customizes a bound cached function.
type FuncOption func(*funcOptions)

type funcOptions struct {
	lockTTL          time.Duration
	shouldCacheError func(error) bool
}

// WithLockTTL holds a distributed lock of the given lifetime around each
// compute, when the underlying tier supports locking.
func WithLockTTL(ttl time.Duration) FuncOption {
	return func(o *funcOptions) {
		o.lockTTL = ttl
	}
}

// WithErrorCaching sets the predicate deciding which compute failures are
// cached by CallCachingErrors. Without it, CallCachingErrors caches every
// failure.
func WithErrorCaching(shouldCache func(error) bool) FuncOption {
	return func(o *funcOptions) {
		o.shouldCacheError = shouldCache
	}
}

// CachedFunc is a function bound to the cache under a declarative policy:
// calls go through the coalescing coordinator keyed by the rendered
// arguments.
type CachedFunc struct {
	cache *Cache
	name  string
	fn    Func
	ttl   time.Duration
	opts  funcOptions
}

// Bind attaches fn to the cache under name. Each distinct argument list
// caches independently; results live for ttl (zero follows the tiers' rule
// described on Cache.Set).
func (c *Cache) Bind(name string, fn Func, ttl time.Duration, opts ...FuncOption) *CachedFunc {
	o := funcOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &CachedFunc{
		cache: c,
		name:  name,
		fn:    fn,
		ttl:   ttl,
		opts:  o,
	}
}

// Call returns the cached result for args, computing and storing it on a
// miss. Failures are never cached and a previously cached failure reads as
// absent, so a Call can recover a key poisoned by CallCachingErrors.
func (f *CachedFunc) Call(ctx context.Context, args ...any) (any, error) {
	return f.call(ctx, args, nil)
}

// CallCachingErrors behaves like Call but also stores compute failures
// (those accepted by the binding's predicate), so repeated callers share the
// failure instead of recomputing. A stored failure is returned as a
// *CachedError.
func (f *CachedFunc) CallCachingErrors(ctx context.Context, args ...any) (any, error) {
	shouldCache := f.opts.shouldCacheError
	if shouldCache == nil {
		shouldCache = func(error) bool { return true }
	}
	return f.call(ctx, args, shouldCache)
}

func (f *CachedFunc) call(ctx context.Context, args []any, shouldCacheError func(error) bool) (any, error) {
	key, err := f.cache.BuildKey(f.name, args...)
	if err != nil {
		return nil, err
	}
	return f.cache.GetOrFetch(ctx, key, f.ttl, func(ctx context.Context) (any, error) {
		return f.fn(ctx, args...)
	}, FetchOptions{
		LockTTL:    f.opts.lockTTL,
		CacheError: shouldCacheError,
	})
}

// Uncached invokes the function directly, bypassing the cache entirely.
func (f *CachedFunc) Uncached(ctx context.Context, args ...any) (any, error) {
	return f.fn(ctx, args...)
}

// Clear deletes the cached entry for args.
func (f *CachedFunc) Clear(ctx context.Context, args ...any) error {
	key, err := f.cache.BuildKey(f.name, args...)
	if err != nil {
		return err
	}
	return f.cache.Delete(ctx, key)
}

// Peek reads the cached entry for args without computing on a miss.
func (f *CachedFunc) Peek(ctx context.Context, args ...any) (any, error) {
	key, err := f.cache.BuildKey(f.name, args...)
	if err != nil {
		return nil, err
	}
	return f.cache.Get(ctx, key)
}

// WaitForReplication delegates to the parent cache.
func (f *CachedFunc) WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error) {
	return f.cache.WaitForReplication(ctx, replicas, timeout)
}
