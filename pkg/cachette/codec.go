package cachette

import (
	"github.com/cachette-io/cachette/internal/codec"
)

// Encode serializes a cache value to the string form the remote store
// holds. Exposed for callers that persist or inspect encoded bodies.
func Encode(v any) (string, error) {
	return codec.Encode(v)
}

// Decode is the inverse of Encode. found=false (the store's "no key"
// signal) decodes to the absence sentinel.
func Decode(s string, found bool) (any, error) {
	return codec.Decode(s, found)
}
