package cachette

import (
	"github.com/cachette-io/cachette/internal/types"
)

var (
	// ErrCacheMiss reports that a key is absent from the tier.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrClosed reports an operation on a closed cache.
	ErrClosed = types.ErrClosed
	// ErrRemoteUnavailable reports that the remote store is unreachable.
	ErrRemoteUnavailable = types.ErrRemoteUnavailable
	// ErrLockTimeout reports that a lock could not be acquired in time.
	ErrLockTimeout = types.ErrLockTimeout
	// ErrLockNotHeld reports a release of a lock that is not held.
	ErrLockNotHeld = types.ErrLockNotHeld
	// ErrLockingUnsupported reports a lock operation on a tier without
	// locking.
	ErrLockingUnsupported = types.ErrLockingUnsupported
	// ErrInvalidURL reports a cache URL that does not name a Redis endpoint.
	ErrInvalidURL = types.ErrInvalidURL
	// ErrKeyTooLong reports a built key exceeding the configured maximum.
	ErrKeyTooLong = types.ErrKeyTooLong
	// ErrCircularArgument reports a self-referential key argument.
	ErrCircularArgument = types.ErrCircularArgument
	// ErrUnsupportedArgument reports a key argument of a kind the builder
	// cannot render.
	ErrUnsupportedArgument = types.ErrUnsupportedArgument
	// ErrUnsupportedValue reports a value the codec cannot store.
	ErrUnsupportedValue = types.ErrUnsupportedValue
)

// CacheError wraps a failure from a specific tier operation.
type CacheError = types.CacheError

// IsCacheMiss reports whether err signals an absent key.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsRemoteUnavailable reports whether err signals an unreachable store.
func IsRemoteUnavailable(err error) bool {
	return types.IsRemoteUnavailable(err)
}

// IsLockTimeout reports whether err signals a lock acquisition timeout.
func IsLockTimeout(err error) bool {
	return types.IsLockTimeout(err)
}
