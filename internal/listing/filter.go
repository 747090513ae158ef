package listing

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FilterState holds the active filters of a list view. Keys that are unset are
// absent from the map; Set never stores nil or blank values.
type FilterState map[string]any

// NewFilterState copies defaults into a fresh state, dropping unset values.
func NewFilterState(defaults map[string]any) FilterState {
	state := make(FilterState, len(defaults))
	for key, value := range defaults {
		state.Set(key, value)
	}
	return state
}

// Set assigns value to key. nil, empty and whitespace-only strings unset the key.
func (f FilterState) Set(key string, value any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	normalized, ok := normalizeValue(value)
	if !ok {
		delete(f, key)
		return
	}
	f[key] = normalized
}

// Get returns the value for key and whether it is set.
func (f FilterState) Get(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

// Clone returns an independent copy.
func (f FilterState) Clone() FilterState {
	out := make(FilterState, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the set keys in lexical order.
func (f FilterState) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both states carry the same keys and encoded values.
func (f FilterState) Equal(other FilterState) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || Encode(v) != Encode(ov) {
			return false
		}
	}
	return true
}

// Values encodes every set filter as a query parameter.
func (f FilterState) Values() url.Values {
	values := make(url.Values, len(f))
	for k, v := range f {
		values.Set(k, Encode(v))
	}
	return values
}

// Encode renders a filter value the way it travels on the query string.
func Encode(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func normalizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return nil, false
		}
		return val, true
	case *string:
		if val == nil {
			return nil, false
		}
		return normalizeValue(*val)
	case int, int64, float64, bool:
		return val, true
	case int32:
		return int64(val), true
	case float32:
		return float64(val), true
	case *int64:
		if val == nil {
			return nil, false
		}
		return *val, true
	case fmt.Stringer:
		return normalizeValue(val.String())
	default:
		return normalizeValue(fmt.Sprint(val))
	}
}
