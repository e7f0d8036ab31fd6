package payload

import (
	"strconv"
	"strings"
)

// Lookup walks dottedPath through nested objects. Numeric segments index into arrays.
// The boolean is false when a segment is missing or the current value cannot be
// traversed; a present null or false value is still found.
func Lookup(payload any, dottedPath string) (any, bool) {
	if dottedPath == "" {
		return payload, true
	}
	current := payload
	for _, key := range strings.Split(dottedPath, ".") {
		switch v := current.(type) {
		case map[string]any:
			if v == nil {
				return nil, false
			}
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			current = v[i]
		default:
			return nil, false
		}
	}
	return current, true
}
