package types

import (
	"context"
	"time"
)

type TierInfo interface {
	Name() string
}

type TierReader interface {
	// Get returns the stored value, or ErrCacheMiss when the key is absent.
	// Transport failures degrade to ErrCacheMiss after a warn event.
	Get(ctx context.Context, key string) (any, error)
	// GetTTL reports the entry's expiry. Transport failures degrade to
	// TTLMissing after a warn event.
	GetTTL(ctx context.Context, key string) TTL
}

type TierWriter interface {
	// Set stores value under key for ttl and reports whether the value was
	// stored. A zero ttl means no expiration on the remote tier; the local
	// tier applies its configured default max age instead. Unstorable values
	// and transport failures yield false after a warn event.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Delete(ctx context.Context, key string) error
}

type TierClearer interface {
	Clear(ctx context.Context) error
	// ClearMemory drops only in-process state. On a purely remote tier it is
	// a no-op.
	ClearMemory(ctx context.Context) error
}

type TierCounter interface {
	ItemCount(ctx context.Context) (int64, error)
}

type Replicator interface {
	// WaitForReplication blocks until the given number of replicas have
	// acknowledged prior writes, or the timeout elapses, and returns the
	// acknowledged count.
	WaitForReplication(ctx context.Context, replicas int, timeout time.Duration) (int, error)
}

// LockHandle is the opaque release token for an advisory lock.
type LockHandle interface {
	LockName() string
	ExpiresAt() time.Time
}

type Locker interface {
	IsLockingSupported() bool
	// Lock acquires the named advisory lock for ttl. retry selects the
	// retrying controller where the tier distinguishes one; tiers without a
	// retry split ignore it. Tiers with IsLockingSupported() == false fail
	// with ErrLockingUnsupported.
	Lock(ctx context.Context, name string, ttl time.Duration, retry bool) (LockHandle, error)
	// Unlock releases a held lock. Releasing an expired handle is a no-op.
	Unlock(ctx context.Context, handle LockHandle) error
	// HasLock reports whether any live lock name starts with prefix.
	HasLock(ctx context.Context, prefix string) (bool, error)
}

type TierCloser interface {
	Close() error
}

// Tier is the uniform store-layer contract shared by the local, remote and
// write-through implementations.
type Tier interface {
	TierInfo
	TierReader
	TierWriter
	TierClearer
	TierCounter
	Replicator
	Locker
	TierCloser
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
