package opts

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-optstore/layering"
)

// Scope models a named precedence bucket (defaults, file, env, runtime...).
// Higher priority values represent stronger layers.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches arbitrary metadata to the scope. The map is copied
// so the resulting Scope remains immutable even if the caller mutates their
// reference.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope. Validation is deferred to Stack construction.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

// Layer pairs a scope with the tree one source produced for it.
type Layer struct {
	Scope      Scope
	Snapshot   Tree
	SnapshotID string
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithSnapshotID sets the snapshot identifier used for auditing.
func WithSnapshotID(id string) LayerOption {
	return func(layer *Layer) {
		layer.SnapshotID = id
	}
}

// NewLayer constructs a Layer holding copies of scope and snapshot.
func NewLayer(scope Scope, snapshot Tree, opts ...LayerOption) Layer {
	layer := Layer{
		Scope:    scope.clone(),
		Snapshot: snapshot.Clone(),
	}
	if layer.Snapshot == nil {
		layer.Snapshot = Tree{}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&layer)
	}
	return layer
}

func (l Layer) clone() Layer {
	return Layer{
		Scope:      l.Scope.clone(),
		Snapshot:   l.Snapshot.Clone(),
		SnapshotID: l.SnapshotID,
	}
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates Stack construction received multiple
	// layers with the same scope name.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates Stack construction detected duplicate
	// priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

// Stack is an immutable set of layers ordered from strongest to weakest.
type Stack struct {
	layers []Layer
}

// NewStack validates and sorts the supplied layers so that the strongest scope
// (highest priority) is first. Layers are deep copied.
func NewStack(layers ...Layer) (*Stack, error) {
	if len(layers) == 0 {
		return &Stack{}, nil
	}

	seenNames := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		layer := layer.clone()
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seenNames[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seenNames[layer.Scope.Name] = struct{}{}
		copied[i] = layer
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Scope.Priority == copied[j].Scope.Priority {
			return copied[i].Scope.Name < copied[j].Scope.Name
		}
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority <= copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}
	if err := checkShapes(copied); err != nil {
		return nil, err
	}

	return &Stack{layers: copied}, nil
}

// checkShapes walks layers weakest first and rejects any layer that puts a
// leaf where the layers below it hold a section, or a section over a leaf.
func checkShapes(layers []Layer) error {
	var below Tree
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if path, ok := shapeConflict(layer.Snapshot, below, nil); ok {
			return fmt.Errorf("%w: scope %q redefines %q with a different shape",
				ErrPathConflict, layer.Scope.Name, path.String())
		}
		below = layering.MergeLayers(layer.Snapshot, below)
	}
	return nil
}

// shapeConflict returns the first path, in key order, where strong and weak
// disagree on leaf versus section.
func shapeConflict(strong, weak Tree, prefix Path) (Path, bool) {
	for _, key := range strong.Keys() {
		existing, ok := weak[key]
		if !ok {
			continue
		}
		path := append(prefix[:len(prefix):len(prefix)], key)
		strongSection, strongIsSection := strong[key].(Tree)
		weakSection, weakIsSection := existing.(Tree)
		if strongIsSection != weakIsSection {
			return path, true
		}
		if strongIsSection {
			if conflict, ok := shapeConflict(strongSection, weakSection, path); ok {
				return conflict, true
			}
		}
	}
	return nil, false
}

// Layers returns copies of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].clone()
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Tree merges every layer, strongest over weakest, into a new tree.
func (s *Stack) Tree() Tree {
	if s == nil || len(s.layers) == 0 {
		return Tree{}
	}
	snapshots := make([]Tree, len(s.layers))
	for i := range s.layers {
		snapshots[i] = s.layers[i].Snapshot
	}
	merged := layering.MergeLayers(snapshots...)
	if merged == nil {
		return Tree{}
	}
	return merged
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
