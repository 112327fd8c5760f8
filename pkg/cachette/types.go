package cachette

import (
	"github.com/cachette-io/cachette/internal/types"
)

type (
	// Set is a composite value whose members are unordered and unique.
	Set = types.Set
	// Map is a keyed map whose keys may be any scalar.
	Map = types.Map
	// CachedError is an error object that survives a cache round trip.
	CachedError = types.CachedError
	// ErrorMetadata is implemented by errors whose custom properties should
	// survive caching.
	ErrorMetadata = types.ErrorMetadata
	// TTL is the tri-state remaining-lifetime answer.
	TTL = types.TTL
	// TTLState classifies the expiry of an entry.
	TTLState = types.TTLState
	// LockHandle is the opaque release token for an advisory lock.
	LockHandle = types.LockHandle
	// Logger is the pluggable logging interface.
	Logger = types.Logger
	// RedactedURL holds a store URL that masks its credentials when
	// marshaled or printed.
	RedactedURL = types.RedactedURL
)

const (
	// TTLMissing means the key does not exist.
	TTLMissing = types.TTLMissing
	// TTLNone means the entry exists and never expires.
	TTLNone = types.TTLNone
	// TTLRemaining means the entry expires after TTL.Remaining.
	TTLRemaining = types.TTLRemaining
)

// NoValue is the absence sentinel. A compute function may return it to
// signal "nothing to store"; it is never storable itself.
var NoValue = types.NoValue

// IsNoValue reports whether v is the absence sentinel.
func IsNoValue(v any) bool {
	return types.IsNoValue(v)
}

// NewSet builds a Set from its members.
func NewSet(members ...any) Set {
	return types.NewSet(members...)
}

// NewRedactedURL creates a RedactedURL holding raw.
func NewRedactedURL(raw string) RedactedURL {
	return types.NewRedactedURL(raw)
}
