// Package layering holds the plain-value helpers shared by tree nodes and
// references: deep copies of decoded YAML values and layered map merges.
package layering

// MergeMaps composes maps ordered from strongest to weakest, returning a new
// map that keeps keys from stronger layers while filling missing keys from
// weaker ones. Nested map[string]any values are merged recursively; any other
// value from a stronger layer replaces the weaker one wholesale.
func MergeMaps(layers ...map[string]any) map[string]any {
	var merged map[string]any
	for i := len(layers) - 1; i >= 0; i-- {
		merged = mergeMap(layers[i], merged)
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func mergeMap(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return CloneMap(weak)
	}
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = Clone(value)
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := result[key].(map[string]any)
		if strongIsMap && weakIsMap {
			result[key] = mergeMap(strongMap, weakMap)
			continue
		}
		result[key] = Clone(value)
	}
	return result
}

// Clone deep copies maps and slices produced by YAML/JSON decoding. Other
// values are returned as-is; they are treated as immutable scalars.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case map[any]any:
		if typed == nil {
			return typed
		}
		out := make(map[any]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		if typed == nil {
			return typed
		}
		return append([]string(nil), typed...)
	default:
		return value
	}
}

// CloneMap deep copies m, returning nil for empty input so callers can keep
// zero-value metadata fields.
func CloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = Clone(value)
	}
	return out
}
