package types

import "sort"

type noValue struct{}

// NoValue is the absence sentinel. The codec decodes the store's "no key"
// signal to it (tier reads report a missing key as ErrCacheMiss instead), and
// a compute function may return it to signal "nothing to store". It is not
// itself storable: Set rejects it and Encode fails with ErrUnsupportedValue.
var NoValue any = noValue{}

// IsNoValue reports whether v is the absence sentinel.
func IsNoValue(v any) bool {
	_, ok := v.(noValue)
	return ok
}

// Set is a composite value whose members are unordered and unique. Members
// must be comparable; after a codec round trip they are the JSON scalar
// kinds (string, float64, bool, nil).
type Set map[any]struct{}

// NewSet builds a Set from its members.
func NewSet(members ...any) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s Set) Contains(member any) bool {
	_, ok := s[member]
	return ok
}

// Map is a keyed map whose keys may be any scalar, as opposed to a plain
// record (map[string]any) whose keys are property names.
type Map map[any]any

// CachedError is an error object that survives a cache round trip. Name and
// Properties carry whatever enumerable metadata the original error exposed.
type CachedError struct {
	Message    string         `json:"message"`
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (e *CachedError) Error() string {
	return e.Message
}

// Property returns a named metadata value, or nil.
func (e *CachedError) Property(name string) any {
	if e.Properties == nil {
		return nil
	}
	return e.Properties[name]
}

// ErrorMetadata is implemented by errors that want custom properties to
// survive caching.
type ErrorMetadata interface {
	ErrorName() string
	ErrorProperties() map[string]any
}

// WrapError converts an arbitrary error into a CachedError, preserving
// metadata when the error exposes it. A CachedError passes through as is.
func WrapError(err error) *CachedError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CachedError); ok {
		return ce
	}
	ce := &CachedError{Message: err.Error()}
	if meta, ok := err.(ErrorMetadata); ok {
		ce.Name = meta.ErrorName()
		props := meta.ErrorProperties()
		if len(props) > 0 {
			ce.Properties = make(map[string]any, len(props))
			for k, v := range props {
				ce.Properties[k] = v
			}
		}
	}
	return ce
}

// SortedPropertyNames returns the property names of a record in ascending
// order. Used by the key builder to render records canonically.
func SortedPropertyNames(record map[string]any) []string {
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
