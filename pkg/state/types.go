package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	opts "github.com/goliatone/go-optstore"
)

var (
	// ErrETagMismatch reports an optimistic concurrency conflict.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef reports a Ref that cannot be turned into a storage key.
	ErrInvalidRef = errors.New("state: invalid ref")
)

// Ref identifies one persisted layer of one configuration domain.
type Ref struct {
	Domain string
	Scope  opts.Scope
}

// Meta is storage-owned metadata used for trace and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one tree for a single Ref. Load reports ok=false when
// nothing has been saved yet.
type Store interface {
	Load(ctx context.Context, ref Ref) (tree opts.Tree, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, tree opts.Tree, meta Meta) (Meta, error)
}

// Mutator edits a stored tree in place.
type Mutator func(opts.Tree) error

// Identifier returns the storage key for r. Scopes whose metadata carries an
// "id" string are keyed per owner ("user/42/options"); others are keyed per
// scope ("site/options").
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	scope := strings.TrimSpace(r.Scope.Name)
	if domain == "" || scope == "" {
		return "", fmt.Errorf("%w: domain and scope name are required", ErrInvalidRef)
	}
	if strings.Contains(domain, "/") || strings.Contains(scope, "/") {
		return "", fmt.Errorf("%w: %q/%q must not contain '/'", ErrInvalidRef, scope, domain)
	}
	raw, ok := r.Scope.Metadata["id"]
	if !ok {
		return scope + "/" + domain, nil
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: metadata id for scope %q must be a non-empty string without '/'", ErrInvalidRef, scope)
	}
	return fmt.Sprintf("%s/%s/%s", scope, strings.TrimSpace(id), domain), nil
}

// Stamp fills the content-derived fields of meta for tree: SnapshotID and
// ETag both become the tree fingerprint, UpdatedAt becomes now.
func Stamp(ref Ref, tree opts.Tree, meta Meta) Meta {
	out := cloneMeta(meta)
	fingerprint := opts.SnapshotIDFor(ref.Scope.Name, tree)
	out.SnapshotID = fingerprint
	out.ETag = fingerprint
	out.UpdatedAt = time.Now().UTC()
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
