package cachette

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cachette-io/cachette/internal/types"
)

const keySeparator = "-"

// buildKey renders name and args into a single deterministic key: arguments
// joined by the separator, record entries sorted by property name, sequence
// and set members sorted by their rendering so order never changes the key.
// nil renders as the literal token "null" and the absence sentinel as
// "undefined" rather than being dropped.
func buildKey(name string, maxLength int, args []any) (string, error) {
	b := &keyBuilder{visited: make(map[uintptr]struct{})}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		rendered, err := b.render(arg)
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}

	key := strings.Join(parts, keySeparator)
	if maxLength > 0 && len(key) > maxLength {
		return "", fmt.Errorf("%w: %d > %d", types.ErrKeyTooLong, len(key), maxLength)
	}
	return key, nil
}

type keyBuilder struct {
	visited map[uintptr]struct{}
}

func (b *keyBuilder) render(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
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
	case map[string]any:
		return b.renderRecord(val)
	case []any:
		return b.renderSequence(val)
	case []string:
		seq := make([]any, len(val))
		for i, s := range val {
			seq[i] = s
		}
		return b.renderSequence(seq)
	case types.Map:
		return b.renderKeyedMap(val)
	case types.Set:
		members := make([]any, 0, len(val))
		for m := range val {
			members = append(members, m)
		}
		return b.renderSequence(members)
	default:
		if types.IsNoValue(v) {
			return "undefined", nil
		}
		return "", fmt.Errorf("%w: %T", types.ErrUnsupportedArgument, v)
	}
}

// renderRecord emits sorted "name-value" pairs so property order never
// changes the key.
func (b *keyBuilder) renderRecord(record map[string]any) (string, error) {
	release, err := b.enter(record)
	if err != nil {
		return "", err
	}
	defer release()

	parts := make([]string, 0, len(record)*2)
	for _, name := range types.SortedPropertyNames(record) {
		rendered, err := b.render(record[name])
		if err != nil {
			return "", err
		}
		parts = append(parts, name, rendered)
	}
	return strings.Join(parts, keySeparator), nil
}

func (b *keyBuilder) renderKeyedMap(m types.Map) (string, error) {
	release, err := b.enter(m)
	if err != nil {
		return "", err
	}
	defer release()

	record := make(map[string]any, len(m))
	for k, v := range m {
		name, err := b.render(k)
		if err != nil {
			return "", err
		}
		record[name] = v
	}
	return b.renderRecord(record)
}

// renderSequence sorts the rendered members, making the key insensitive to
// member order.
func (b *keyBuilder) renderSequence(seq []any) (string, error) {
	release, err := b.enter(seq)
	if err != nil {
		return "", err
	}
	defer release()

	parts := make([]string, 0, len(seq))
	for _, member := range seq {
		rendered, err := b.render(member)
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}
	sort.Strings(parts)
	return strings.Join(parts, keySeparator), nil
}

// enter guards against self-referential containers, which would otherwise
// recurse forever.
func (b *keyBuilder) enter(container any) (func(), error) {
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
	default:
		return func() {}, nil
	}
	if rv.Len() == 0 {
		return func() {}, nil
	}

	p := rv.Pointer()
	if _, seen := b.visited[p]; seen {
		return nil, types.ErrCircularArgument
	}
	b.visited[p] = struct{}{}
	return func() { delete(b.visited, p) }, nil
}
