package state

import (
	"context"
	"fmt"

	opts "github.com/goliatone/go-optstore"
)

// Resolver loads stored layers and assembles stores from them.
type Resolver struct {
	Store Store
}

// Resolve builds a store for domain from the embedded defaults plus one
// layer per scope found in the Store. Scopes with nothing saved are skipped.
// Extra options are passed to opts.New after the resolved layers.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes []opts.Scope, options ...opts.Option) (*opts.Options, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}

	var sources []opts.Source
	for _, scope := range scopes {
		if scope.Name == opts.ScopeDefaults {
			return nil, fmt.Errorf("state: scope name %q is reserved", opts.ScopeDefaults)
		}
		tree, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		sources = append(sources, opts.TreeSource(scope, tree, opts.WithSnapshotID(meta.SnapshotID)))
	}

	all := []opts.Option{opts.WithDomain(domain), opts.WithSources(sources...)}
	all = append(all, options...)
	store, err := opts.NewWithContext(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("state: resolve %q: %w", domain, err)
	}
	return store, nil
}

// Mutate loads the tree at ref, applies fn and saves the result. A non-empty
// expected.ETag must match the stored ETag. The mutated tree is checked by
// stacking it over the defaults before anything is written.
func (r Resolver) Mutate(ctx context.Context, ref Ref, expected Meta, fn Mutator) (opts.Tree, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, err
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	tree, loaded, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok || tree == nil {
		tree = opts.Tree{}
		loaded = Meta{}
	}
	if expected.ETag != "" && expected.ETag != loaded.ETag {
		return nil, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, loaded.ETag)
	}

	working := tree.Clone()
	if err := fn(working); err != nil {
		return nil, loaded, err
	}
	if _, err := opts.New(opts.WithSources(opts.TreeSource(ref.Scope, working))); err != nil {
		return nil, loaded, fmt.Errorf("state: mutated tree for scope %q: %w", ref.Scope.Name, err)
	}

	saved, err := r.Store.Save(ctx, ref, working, Stamp(ref, working, mergeExtra(loaded, expected)))
	if err != nil {
		return nil, loaded, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return working, saved, nil
}

// Persist saves everything store holds above its defaults under ref,
// replacing what was there.
func (r Resolver) Persist(ctx context.Context, ref Ref, store *opts.Options) (Meta, error) {
	if r.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if store == nil {
		return Meta{}, fmt.Errorf("state: options store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	overrides := store.Overrides()
	saved, err := r.Store.Save(ctx, ref, overrides, Stamp(ref, overrides, Meta{}))
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return saved, nil
}

func mergeExtra(base, override Meta) Meta {
	out := cloneMeta(base)
	if override.Extra != nil {
		out.Extra = cloneMeta(override).Extra
	}
	return out
}
