package opts

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-optstore/layering"
)

// Node is either a nested Tree or a leaf Value.
type Node interface {
	isNode()
}

// Tree is a nested configuration section. Keys are unique within one level.
type Tree map[string]Node

func (Tree) isNode() {}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	return layering.Clone(t)
}

// Keys returns the keys of t sorted lexically.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup walks path and returns the node it ends on.
func (t Tree) Lookup(path Path) (Node, error) {
	if len(path) == 0 {
		return t, nil
	}
	var current Node = t
	for i, segment := range path {
		section, ok := current.(Tree)
		if !ok {
			return nil, fmt.Errorf("%w: %q stops at leaf %q", ErrKeyNotFound, path.String(), path[:i].String())
		}
		next, ok := section[segment]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, path.String())
		}
		current = next
	}
	return current, nil
}

// Value resolves path to a leaf.
func (t Tree) Value(path Path) (Value, error) {
	node, err := t.Lookup(path)
	if err != nil {
		return Value{}, err
	}
	value, ok := node.(Value)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrNotLeaf, path.String())
	}
	return value, nil
}

// Section resolves path to a nested Tree. The result is shared with t.
func (t Tree) Section(path Path) (Tree, error) {
	node, err := t.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, path.String())
	}
	section, ok := node.(Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a value", ErrSectionNotFound, path.String())
	}
	return section, nil
}

// Assign stores value at path, creating missing sections. It returns the
// previous leaf when one was replaced.
func (t Tree) Assign(path Path, value Value) (Value, bool, error) {
	if len(path) == 0 {
		return Value{}, false, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if !value.IsValid() {
		return Value{}, false, fmt.Errorf("%w: invalid value for %q", ErrUnsupportedValue, path.String())
	}
	section := t
	for i, segment := range path.Parent() {
		next, ok := section[segment]
		if !ok {
			created := Tree{}
			section[segment] = created
			section = created
			continue
		}
		nested, ok := next.(Tree)
		if !ok {
			return Value{}, false, fmt.Errorf("%w: %q is a value, cannot descend to %q", ErrPathConflict, path[:i+1].String(), path.String())
		}
		section = nested
	}

	leaf := path.Leaf()
	switch existing := section[leaf].(type) {
	case Tree:
		return Value{}, false, fmt.Errorf("%w: %q is a section", ErrPathConflict, path.String())
	case Value:
		section[leaf] = value
		return existing, true, nil
	default:
		section[leaf] = value
		return Value{}, false, nil
	}
}

// Flatten returns every leaf below t keyed by its dotted path relative to t.
func (t Tree) Flatten() map[string]Value {
	out := make(map[string]Value)
	t.walk("", func(key string, value Value) {
		out[key] = value
	})
	return out
}

func (t Tree) walk(prefix string, visit func(string, Value)) {
	for key, node := range t {
		path := joinPath(prefix, key)
		switch typed := node.(type) {
		case Tree:
			typed.walk(path, visit)
		case Value:
			visit(path, typed)
		}
	}
}

// Plain converts t into nested map[string]any with native leaves, the shape
// expression engines and encoders expect.
func (t Tree) Plain() map[string]any {
	out := make(map[string]any, len(t))
	for key, node := range t {
		switch typed := node.(type) {
		case Tree:
			out[key] = typed.Plain()
		case Value:
			out[key] = typed.Interface()
		}
	}
	return out
}

// TreeFromMap converts a decoded document into a Tree. Nested maps become
// sections; scalars go through ValueOf. Nil leaves are dropped. Lists and other
// composite values are rejected.
func TreeFromMap(raw map[string]any) (Tree, error) {
	return treeFromMap(raw, "")
}

func treeFromMap(raw map[string]any, prefix string) (Tree, error) {
	out := make(Tree, len(raw))
	for key, entry := range raw {
		path := joinPath(prefix, key)
		switch typed := entry.(type) {
		case nil:
			continue
		case map[string]any:
			nested, err := treeFromMap(typed, path)
			if err != nil {
				return nil, err
			}
			out[key] = nested
		case Tree:
			out[key] = typed.Clone()
		default:
			value, err := ValueOf(typed)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", path, err)
			}
			out[key] = value
		}
	}
	return out, nil
}
