// Package layering composes nested configuration maps. A layer is a map whose
// values are either leaves or nested maps of the same type; layers are merged
// leaf by leaf so a partial layer never erases siblings it does not mention.
package layering

// MergeLayers composes layers ordered from strongest to weakest, returning a
// new map that keeps every leaf set by a stronger layer while filling anything
// missing from weaker ones. Nested maps are merged recursively. A leaf in a
// stronger layer replaces a nested map at the same key and the reverse.
//
// The inputs are never modified.
func MergeLayers[M ~map[string]V, V any](layers ...M) M {
	if len(layers) == 0 {
		return nil
	}

	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMaps(layers[i], merged)
	}
	return merged
}

// Overlay merges strong onto weak in place. It is MergeLayers for two layers
// without the extra copy of weak; strong is cloned as it is copied in.
func Overlay[M ~map[string]V, V any](weak, strong M) {
	for key, value := range strong {
		if strongMap, ok := any(value).(M); ok {
			if weakMap, ok := any(weak[key]).(M); ok {
				Overlay(weakMap, strongMap)
				continue
			}
		}
		weak[key] = cloneEntry[M](value)
	}
}

func mergeMaps[M ~map[string]V, V any](strong, weak M) M {
	if strong == nil {
		return Clone(weak)
	}
	result := make(M, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = cloneEntry[M](value)
	}
	for key, value := range strong {
		if strongMap, ok := any(value).(M); ok {
			if weakMap, ok := any(result[key]).(M); ok {
				result[key] = any(mergeMaps(strongMap, weakMap)).(V)
				continue
			}
		}
		result[key] = cloneEntry[M](value)
	}
	return result
}

// Clone deep-copies nested maps of type M. Leaves are copied by value.
func Clone[M ~map[string]V, V any](layer M) M {
	if layer == nil {
		return nil
	}
	out := make(M, len(layer))
	for key, value := range layer {
		out[key] = cloneEntry[M](value)
	}
	return out
}

func cloneEntry[M ~map[string]V, V any](value V) V {
	if nested, ok := any(value).(M); ok {
		return any(Clone(nested)).(V)
	}
	return value
}
