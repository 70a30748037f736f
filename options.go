package opts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-optstore/internal/format"
	"github.com/goliatone/go-optstore/layering"
	"github.com/goliatone/go-optstore/pkg/activity"
)

// Options is a layered configuration store. It merges the default document,
// an optional override file and any extra sources into one effective tree,
// then accepts runtime edits on top.
//
// An Options value is not safe for concurrent mutation. Wrap it with a lock or
// confine it to one goroutine when Set or Reload may race with readers.
type Options struct {
	cfg       optionsConfig
	log       zerolog.Logger
	emitter   *activity.Emitter
	evaluator Evaluator
	stack     *Stack
	runtime   Tree
	tree      Tree
}

// New builds a store from the embedded defaults plus whatever opts add.
func New(opts ...Option) (*Options, error) {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext is New with a context forwarded to activity hooks.
func NewWithContext(ctx context.Context, opts ...Option) (*Options, error) {
	cfg := applyOptions(opts)
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	o := &Options{
		cfg: cfg,
		log: cfg.logger.With().Str("component", "optstore").Str("domain", cfg.domain).Logger(),
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: true,
			Channel: cfg.activityChannel,
		}),
		runtime: Tree{},
	}
	stack, err := o.readStack()
	if err != nil {
		return nil, err
	}
	o.install(ctx, stack)
	return o, nil
}

// Load builds a store whose override file lives at path. A missing file leaves
// the defaults in place.
func Load(path string, opts ...Option) (*Options, error) {
	return New(append(opts, WithOverrideFile(path))...)
}

func (o *Options) sources() []Source {
	defaults := o.cfg.defaults
	if defaults == nil {
		defaults = DefaultSource()
	}
	sources := []Source{defaults}
	sources = append(sources, o.cfg.sources...)
	if o.cfg.overridePath != "" {
		sources = append(sources, FileSource(o.cfg.overridePath))
	}
	if o.cfg.envPrefix != "" {
		sources = append(sources, EnvSource(o.cfg.envPrefix))
	}
	return sources
}

func (o *Options) readStack() (*Stack, error) {
	var layers []Layer
	for _, source := range o.sources() {
		scope := source.Scope()
		layer, ok, err := source.Read()
		if err != nil {
			o.log.Error().Err(err).Str("scope", scope.Name).Msg("layer load failed")
			return nil, err
		}
		if !ok {
			o.log.Info().Str("scope", scope.Name).Msg("layer absent, skipped")
			continue
		}
		layers = append(layers, layer)
	}
	stack, err := NewStack(layers...)
	if err != nil {
		return nil, &LoadError{Source: "stack", Err: err}
	}
	if path, conflict := shapeConflict(o.runtime, stack.Tree(), nil); conflict {
		return nil, &LoadError{
			Source: ScopeRuntime,
			Err:    fmt.Errorf("%w: runtime value %q no longer matches the loaded layers", ErrPathConflict, path.String()),
		}
	}
	return stack, nil
}

func (o *Options) install(ctx context.Context, stack *Stack) {
	o.stack = stack
	o.tree = stack.Tree()
	layering.Overlay(o.tree, o.runtime.Clone())
	for _, layer := range stack.Layers() {
		o.log.Debug().
			Str("scope", layer.Scope.Name).
			Int("priority", layer.Scope.Priority).
			Str("snapshot_id", layer.SnapshotID).
			Int("keys", len(layer.Snapshot.Flatten())).
			Msg("layer applied")
		o.emit(ctx, activity.BuildLayerAppliedEvent(activity.ConfigEventInput{
			Domain: o.cfg.domain,
			Layer:  layerContext(layer),
		}))
	}
}

// Reload re-reads every source and rebuilds the effective tree. Runtime edits
// made through Set survive. On error the store keeps its previous state.
func (o *Options) Reload(ctx context.Context) error {
	stack, err := o.readStack()
	if err != nil {
		return err
	}
	o.install(ctx, stack)
	o.log.Info().Int("layers", stack.Len()).Msg("configuration reloaded")
	o.emit(ctx, activity.BuildReloadedEvent(activity.ConfigEventInput{
		Domain:   o.cfg.domain,
		Metadata: map[string]any{"layers": stack.Len()},
	}))
	return nil
}

// Get returns the leaf stored under a dotted key such as "loader.combo_min_pred".
func (o *Options) Get(key string) (Value, error) {
	path, err := ParsePath(key)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}
	return o.tree.Value(path)
}

// Has reports whether key resolves to a leaf.
func (o *Options) Has(key string) bool {
	_, err := o.Get(key)
	return err == nil
}

// Set stores value under key, creating intermediate sections when needed.
// value may be a Value or any Go scalar accepted by ValueOf.
func (o *Options) Set(key string, value any) error {
	return o.SetWithContext(context.Background(), key, value)
}

// SetWithContext is Set with a context forwarded to activity hooks.
func (o *Options) SetWithContext(ctx context.Context, key string, value any) error {
	path, err := ParsePath(key)
	if err != nil {
		return err
	}
	next, err := ValueOf(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	previous, replaced, err := o.tree.Assign(path, next)
	if err != nil {
		return err
	}
	if _, _, err := o.runtime.Assign(path, next); err != nil {
		return err
	}

	event := o.log.Debug().Str("key", key).Stringer("value", next)
	if replaced {
		event = event.Stringer("previous", previous)
	}
	event.Msg("value set")

	input := activity.ConfigEventInput{
		Domain:   o.cfg.domain,
		Key:      key,
		NewValue: next.Interface(),
		Layer: activity.LayerContext{
			Name:     ScopeRuntime,
			Priority: ScopePriorityRuntime,
		},
	}
	if replaced {
		input.OldValue = previous.Interface()
	}
	o.emit(ctx, activity.BuildValueSetEvent(input))
	return nil
}

// Flat returns every leaf below section keyed by its path relative to that
// section. section may itself be dotted.
func (o *Options) Flat(section string) (map[string]Value, error) {
	tree, err := o.Section(section)
	if err != nil {
		return nil, err
	}
	return tree.Flatten(), nil
}

// Section returns a copy of the named section.
func (o *Options) Section(section string) (Tree, error) {
	path, err := ParsePath(section)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, section)
	}
	tree, err := o.tree.Section(path)
	if err != nil {
		return nil, err
	}
	return tree.Clone(), nil
}

// Sections lists the top-level sections in lexical order.
func (o *Options) Sections() []string {
	var names []string
	for _, key := range o.tree.Keys() {
		if _, ok := o.tree[key].(Tree); ok {
			names = append(names, key)
		}
	}
	return names
}

// Snapshot returns a deep copy of the effective tree.
func (o *Options) Snapshot() Tree {
	return o.tree.Clone()
}

// Plain returns the effective tree as nested map[string]any.
func (o *Options) Plain() map[string]any {
	return o.tree.Plain()
}

// Layers returns every applied layer, strongest first. Runtime edits appear as
// a "runtime" layer once at least one value has been set.
func (o *Options) Layers() []Layer {
	var layers []Layer
	if len(o.runtime) > 0 {
		layers = append(layers, o.runtimeLayer())
	}
	return append(layers, o.stack.Layers()...)
}

// Overrides returns the merged contribution of every layer above the
// defaults, runtime edits included. This is what a "save" should persist.
func (o *Options) Overrides() Tree {
	var trees []Tree
	for _, layer := range o.Layers() {
		if layer.Scope.Name == ScopeDefaults {
			continue
		}
		trees = append(trees, layer.Snapshot)
	}
	merged := layering.MergeLayers(trees...)
	if merged == nil {
		return Tree{}
	}
	return merged
}

// Marshal encodes the effective tree in f.
func (o *Options) Marshal(f Format) ([]byte, error) {
	return format.Marshal(f, o.tree.Plain())
}

func (o *Options) runtimeLayer() Layer {
	layer := NewLayer(runtimeScope(), o.runtime)
	layer.SnapshotID = SnapshotIDFor(ScopeRuntime, o.runtime)
	return layer
}

func (o *Options) emit(ctx context.Context, event activity.Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		o.log.Warn().Err(err).Str("verb", event.Verb).Msg("activity hook failed")
	}
}

func layerContext(layer Layer) activity.LayerContext {
	return activity.LayerContext{
		Name:       layer.Scope.Name,
		Label:      layer.Scope.Label,
		Priority:   layer.Scope.Priority,
		Metadata:   copyMetadata(layer.Scope.Metadata),
		SnapshotID: layer.SnapshotID,
	}
}
