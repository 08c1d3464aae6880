package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"pyquest-gamification/internal/domain"
)

// GetPath reads a dotted field.
func GetPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath writes a dotted field, creating intermediate maps. A non-map value on
// the way is replaced.
func SetPath(data map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// IncrementPath adds delta to a numeric dotted field.
func IncrementPath(data map[string]any, path string, delta int64) error {
	current := int64(0)
	if v, ok := GetPath(data, path); ok && v != nil {
		n, ok := AsInt64(v)
		if !ok {
			return fmt.Errorf("increment %s: field is %T: %w", path, v, domain.ErrInvalidArgument)
		}
		current = n
	}
	SetPath(data, path, current+delta)
	return nil
}

// UnionPath appends items missing from the array at path. Items must already be normalized.
func UnionPath(data map[string]any, path string, items ...any) error {
	var arr []any
	if v, ok := GetPath(data, path); ok && v != nil {
		existing, ok := v.([]any)
		if !ok {
			return fmt.Errorf("array union %s: field is %T: %w", path, v, domain.ErrInvalidArgument)
		}
		arr = existing
	}
	for _, item := range items {
		if !containsValue(arr, item) {
			arr = append(arr, item)
		}
	}
	if arr == nil {
		arr = []any{}
	}
	SetPath(data, path, arr)
	return nil
}

// DeepMerge copies src into dst, recursing into nested maps.
func DeepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				DeepMerge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

// AsInt64 converts the numeric forms produced by JSON decoding and Go callers.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(math.Round(n)), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func containsValue(arr []any, item any) bool {
	for _, existing := range arr {
		if valuesEqual(existing, item) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}
