package graph

import "strings"

// Project restricts an attribute mapping to the requested fields. With no
// fields it returns a detached copy of the full mapping. Requested keys that
// are absent are silently omitted. Dot-notation fields descend through
// nested maps segment by segment and appear in the result under their full
// dotted name.
func Project(attrs map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return cloneAttrs(attrs)
	}
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if value, ok := lookupPath(attrs, field); ok {
			out[field] = cloneValue(value)
		}
	}
	return out
}

// lookupPath resolves a possibly dotted field path against a nested
// attribute mapping. It reports false if any segment is absent or lands on a
// non-traversable value.
func lookupPath(attrs map[string]any, path string) (any, bool) {
	if attrs == nil {
		return nil, false
	}
	if value, ok := attrs[path]; ok {
		return value, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = attrs
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the JSON-shaped portion of a value so query results
// stay detached from the store's own records.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneAttrs(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
