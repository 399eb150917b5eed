package capability

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params is the resolved parameter map handed to an action handler. The typed
// accessors coerce between string, integer and boolean representations on a
// best-effort basis; values that cannot be converted are reported as absent
// by the typed accessor and remain in the map unchanged.
type Params map[string]interface{}

// String returns the value as a string. Scalars are formatted with %v.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return fmt.Sprintf("%v", val), true
	default:
		return "", false
	}
}

// StringOr returns the string value or def when absent or unconvertible.
func (p Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok {
		return s
	}
	return def
}

// RequiredString returns the value or an error naming the missing parameter.
func (p Params) RequiredString(key string) (string, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	return s, nil
}

// Int64 returns the value as an int64. Numeric strings are parsed; floats
// are accepted only when they hold an integral value.
func (p Params) Int64(key string) (int64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if uint64(val) <= math.MaxInt64 {
			return int64(val), true
		}
	case uint32:
		return int64(val), true
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val), true
		}
	case float32:
		if val >= math.MinInt64 && val < math.MaxInt64 && float32(int64(val)) == val {
			return int64(val), true
		}
	case float64:
		if val >= math.MinInt64 && val < math.MaxInt64 && float64(int64(val)) == val {
			return int64(val), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Int returns the value as an int.
func (p Params) Int(key string) (int, bool) {
	n, ok := p.Int64(key)
	return int(n), ok
}

// IntOr returns the int value or def when absent or unconvertible.
func (p Params) IntOr(key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

// Bool returns the value as a bool. Strings accept the forms understood by
// strconv.ParseBool; numbers are true when non-zero.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, false
	}
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b, true
		}
		return false, false
	}
	if n, ok := p.Int64(key); ok {
		return n != 0, true
	}
	return false, false
}

// BoolOr returns the bool value or def when absent or unconvertible.
func (p Params) BoolOr(key string, def bool) bool {
	if b, ok := p.Bool(key); ok {
		return b
	}
	return def
}

// StringSlice returns a list parameter as strings. A single comma separated
// string is split.
func (p Params) StringSlice(key string) ([]string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	switch val := v.(type) {
	case []string:
		return val, true
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, true
	case string:
		if val == "" {
			return []string{}, true
		}
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	}
	return nil, false
}
