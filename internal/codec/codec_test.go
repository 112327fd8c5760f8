package codec

import (
	"math"
	"strings"
	"testing"

	"github.com/cachette-io/cachette/internal/types"
)

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode(%v) failed: %v", v, err)
	}
	decoded, err := Decode(encoded, true)
	if err != nil {
		t.Fatalf("Decode(%q) failed: %v", encoded, err)
	}
	return decoded
}

func TestEncodeDecodeScalars(t *testing.T) {
	t.Run("nil survives", func(t *testing.T) {
		if got := roundTrip(t, nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("booleans survive", func(t *testing.T) {
		if got := roundTrip(t, true); got != true {
			t.Errorf("expected true, got %v", got)
		}
		if got := roundTrip(t, false); got != false {
			t.Errorf("expected false, got %v", got)
		}
	})

	t.Run("integers survive exactly", func(t *testing.T) {
		for _, n := range []int64{0, -1, 42, -9000, 9007199254740991} {
			if got := roundTrip(t, n); got != n {
				t.Errorf("expected %d, got %v", n, got)
			}
		}
	})

	t.Run("floats survive with round-trip precision", func(t *testing.T) {
		artifact := 0.1 + 0.2
		if got := roundTrip(t, artifact); got != artifact {
			t.Errorf("expected %v, got %v", artifact, got)
		}
		if got := roundTrip(t, math.Inf(1)); got != math.Inf(1) {
			t.Errorf("expected +Inf, got %v", got)
		}
		if got := roundTrip(t, math.Inf(-1)); got != math.Inf(-1) {
			t.Errorf("expected -Inf, got %v", got)
		}
	})

	t.Run("integral float decodes as integer of equal value", func(t *testing.T) {
		got := roundTrip(t, 2.0)
		if got != int64(2) {
			t.Errorf("expected int64(2), got %T(%v)", got, got)
		}
	})

	t.Run("strings survive", func(t *testing.T) {
		for _, s := range []string{"", "hello", "with-dashes", "héllo"} {
			if got := roundTrip(t, s); got != s {
				t.Errorf("expected %q, got %v", s, got)
			}
		}
	})

	t.Run("number-shaped strings stay strings", func(t *testing.T) {
		for _, s := range []string{"42", "-1.5", "0"} {
			if got := roundTrip(t, s); got != s {
				t.Errorf("expected string %q, got %T(%v)", s, got, got)
			}
		}
	})

	t.Run("sentinel-shaped strings stay strings", func(t *testing.T) {
		for _, s := range []string{nullSentinel, trueSentinel, jsonPrefix + "x"} {
			if got := roundTrip(t, s); got != s {
				t.Errorf("expected string %q, got %v", s, got)
			}
		}
	})
}

func TestEncodeDecodeComposites(t *testing.T) {
	t.Run("nested record with set and map members", func(t *testing.T) {
		value := map[string]any{
			"tags":   types.NewSet("a", "b"),
			"scores": types.Map{"x": int64(1), "y": int64(2)},
			"items":  []any{"one", "two"},
		}
		got, ok := roundTrip(t, value).(map[string]any)
		if !ok {
			t.Fatalf("expected record, got %T", got)
		}

		tags, ok := got["tags"].(types.Set)
		if !ok || !tags.Contains("a") || !tags.Contains("b") {
			t.Errorf("set member lost: %v", got["tags"])
		}
		scores, ok := got["scores"].(types.Map)
		if !ok || scores["x"] != float64(1) {
			t.Errorf("map member lost: %v", got["scores"])
		}
		items, ok := got["items"].([]any)
		if !ok || len(items) != 2 || items[0] != "one" {
			t.Errorf("sequence member lost: %v", got["items"])
		}
	})

	t.Run("canonical body for equal sets", func(t *testing.T) {
		a, err := Encode(types.NewSet("x", "y", "z"))
		if err != nil {
			t.Fatal(err)
		}
		b, err := Encode(types.NewSet("z", "x", "y"))
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("equal sets encoded differently: %q vs %q", a, b)
		}
	})
}

type retryableError struct {
	msg string
}

func (e *retryableError) Error() string { return e.msg }
func (e *retryableError) ErrorName() string {
	return "RetryableError"
}
func (e *retryableError) ErrorProperties() map[string]any {
	return map[string]any{"retryable": true, "myStringProperty": "hello"}
}

func TestEncodeDecodeErrors(t *testing.T) {
	t.Run("error round trip preserves metadata", func(t *testing.T) {
		encoded, err := Encode(error(&retryableError{msg: "boom"}))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !strings.HasPrefix(encoded, errorPrefix) {
			t.Fatalf("expected error prefix, got %q", encoded)
		}

		decoded, err := Decode(encoded, true)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		ce, ok := decoded.(*types.CachedError)
		if !ok {
			t.Fatalf("expected *CachedError, got %T", decoded)
		}
		if ce.Message != "boom" || ce.Name != "RetryableError" {
			t.Errorf("identity lost: %+v", ce)
		}
		if ce.Property("retryable") != true || ce.Property("myStringProperty") != "hello" {
			t.Errorf("properties lost: %+v", ce.Properties)
		}
	})

	t.Run("error nested in a record", func(t *testing.T) {
		value := map[string]any{"err": types.WrapError(&retryableError{msg: "inner"})}
		got := roundTrip(t, value).(map[string]any)
		ce, ok := got["err"].(*types.CachedError)
		if !ok || ce.Message != "inner" {
			t.Errorf("nested error lost: %v", got["err"])
		}
	})
}

func TestAbsence(t *testing.T) {
	t.Run("no-key signal decodes to the absence sentinel", func(t *testing.T) {
		got, err := Decode("", false)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !types.IsNoValue(got) {
			t.Errorf("expected absence sentinel, got %v", got)
		}
	})

	t.Run("absence sentinel is unencodable", func(t *testing.T) {
		if _, err := Encode(types.NoValue); err != types.ErrUnsupportedValue {
			t.Errorf("expected ErrUnsupportedValue, got %v", err)
		}
	})
}
