// Package codec round-trips arbitrary cache values through the byte-string
// model of a remote store without losing their type.
//
// Scalars are stored verbatim; everything else is marked with one of a small
// set of UUID-shaped sentinel prefixes so that encoded bodies can never
// collide with ordinary domain strings.
package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cachette-io/cachette/internal/types"
)

const (
	nullSentinel  = "bcebc0ae-541a-4f75-9c00-eae53b3e5e4f"
	trueSentinel  = "e0ff8c42-8ed4-4a8a-a6e4-01dbf2a6b10a"
	falseSentinel = "13b66be6-6b0c-4759-8eeb-437d0e06cdd3"
	errorPrefix   = "6e64dcc4-81ae-4a30-8a34-52ef4da4a0f7:"
	jsonPrefix    = "7d9b2b5e-3a70-4c41-9762-fe0d6cb37f4a:"
)

const (
	setTag   = "$set"
	mapTag   = "$map"
	errorTag = "$error"
)

// Encode serializes v to a string a remote store can hold. The absence
// sentinel is rejected with ErrUnsupportedValue.
//
// Integral numbers are stored exactly. A float whose value is integral and
// below one million in magnitude decodes as an int64 of equal value; larger
// integral floats are written in exponent form and decode as float64.
func Encode(v any) (string, error) {
	if types.IsNoValue(v) {
		return "", types.ErrUnsupportedValue
	}

	switch val := v.(type) {
	case nil:
		return nullSentinel, nil
	case bool:
		if val {
			return trueSentinel, nil
		}
		return falseSentinel, nil
	case string:
		if scalarNeedsWrapping(val) {
			return encodeJSON(val)
		}
		return val, nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case error:
		return encodeError(val)
	default:
		return encodeJSON(val)
	}
}

// Decode is the inverse of Encode. found=false (the store's "no key"
// signal) decodes to the absence sentinel.
func Decode(s string, found bool) (any, error) {
	if !found {
		return types.NoValue, nil
	}

	switch s {
	case nullSentinel:
		return nil, nil
	case trueSentinel:
		return true, nil
	case falseSentinel:
		return false, nil
	}

	if body, ok := strings.CutPrefix(s, errorPrefix); ok {
		var ce types.CachedError
		if err := json.Unmarshal([]byte(body), &ce); err != nil {
			return nil, fmt.Errorf("decoding error body: %w", err)
		}
		return &ce, nil
	}

	if body, ok := strings.CutPrefix(s, jsonPrefix); ok {
		var wire any
		if err := json.Unmarshal([]byte(body), &wire); err != nil {
			return nil, fmt.Errorf("decoding json body: %w", err)
		}
		return fromWire(wire), nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}

// scalarNeedsWrapping reports whether a plain string stored verbatim would
// be misread on decode: sentinel collisions and number-shaped strings go
// through the JSON-prefixed form instead.
func scalarNeedsWrapping(s string) bool {
	switch s {
	case nullSentinel, trueSentinel, falseSentinel:
		return true
	}
	if strings.HasPrefix(s, errorPrefix) || strings.HasPrefix(s, jsonPrefix) {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

func encodeError(err error) (string, error) {
	body, marshalErr := json.Marshal(types.WrapError(err))
	if marshalErr != nil {
		return "", fmt.Errorf("encoding error value: %w", marshalErr)
	}
	return errorPrefix + string(body), nil
}

func encodeJSON(v any) (string, error) {
	wire, err := toWire(v)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encoding json value: %w", err)
	}
	return jsonPrefix + string(body), nil
}

// toWire rewrites sets, keyed maps and error objects into tagged JSON forms
// so their kinds survive the round trip. json.Marshal emits record keys in
// sorted order, which keeps the body canonical.
func toWire(v any) (any, error) {
	switch val := v.(type) {
	case types.Set:
		members := make([]any, 0, len(val))
		for m := range val {
			w, err := toWire(m)
			if err != nil {
				return nil, err
			}
			members = append(members, w)
		}
		sortByJSON(members)
		return map[string]any{setTag: members}, nil
	case types.Map:
		pairs := make([]any, 0, len(val))
		for k, mv := range val {
			wk, err := toWire(k)
			if err != nil {
				return nil, err
			}
			wv, err := toWire(mv)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, []any{wk, wv})
		}
		sortByJSON(pairs)
		return map[string]any{mapTag: pairs}, nil
	case *types.CachedError:
		return map[string]any{errorTag: val}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, mv := range val {
			w, err := toWire(mv)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			w, err := toWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	default:
		if types.IsNoValue(v) {
			return nil, types.ErrUnsupportedValue
		}
		return v, nil
	}
}

func fromWire(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if members, ok := val[setTag].([]any); ok {
				s := make(types.Set, len(members))
				for _, m := range members {
					s[fromWire(m)] = struct{}{}
				}
				return s
			}
			if pairs, ok := val[mapTag].([]any); ok {
				m := make(types.Map, len(pairs))
				for _, p := range pairs {
					if kv, ok := p.([]any); ok && len(kv) == 2 {
						m[fromWire(kv[0])] = fromWire(kv[1])
					}
				}
				return m
			}
			if body, ok := val[errorTag].(map[string]any); ok {
				return errorFromWire(body)
			}
		}
		out := make(map[string]any, len(val))
		for k, mv := range val {
			out[k] = fromWire(mv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = fromWire(e)
		}
		return out
	default:
		return v
	}
}

func errorFromWire(body map[string]any) *types.CachedError {
	ce := &types.CachedError{}
	if msg, ok := body["message"].(string); ok {
		ce.Message = msg
	}
	if name, ok := body["name"].(string); ok {
		ce.Name = name
	}
	if props, ok := body["properties"].(map[string]any); ok {
		ce.Properties = props
	}
	return ce
}

func sortByJSON(items []any) {
	sort.Slice(items, func(i, j int) bool {
		a, _ := json.Marshal(items[i])
		b, _ := json.Marshal(items[j])
		return string(a) < string(b)
	})
}
