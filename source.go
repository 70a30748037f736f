package opts

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/goliatone/go-optstore/internal/format"
)

// Source produces one layer of configuration. Read reports ok=false when the
// source is absent (for example an override file that does not exist), in
// which case the layer is skipped.
type Source interface {
	Scope() Scope
	Read() (layer Layer, ok bool, err error)
}

type bytesSource struct {
	scope  Scope
	name   string
	data   []byte
	format format.Format
}

// BytesSource parses data in the named format ("yaml", "json" or "toml").
func BytesSource(scope Scope, name string, data []byte, f format.Format) Source {
	return bytesSource{scope: scope.clone(), name: name, data: data, format: f}
}

func (s bytesSource) Scope() Scope { return s.scope.clone() }

func (s bytesSource) Read() (Layer, bool, error) {
	doc, err := format.Parse(s.format, s.data)
	if err != nil {
		return Layer{}, false, wrapLoadError(s.scope.Name, s.name, err)
	}
	return buildLayer(s.scope, s.name, doc)
}

type fileSource struct {
	scope Scope
	path  string
}

// FileSource reads an override document from path. The format follows the
// extension. A missing file is not an error; the layer is simply absent.
func FileSource(path string) Source {
	return FileSourceWithScope(NewScope(ScopeFile, ScopePriorityFile, WithScopeLabel("Override File")), path)
}

// FileSourceWithScope reads path under a caller supplied scope, which lets a
// store stack more than one file.
func FileSourceWithScope(scope Scope, path string) Source {
	return fileSource{scope: scope.clone(), path: path}
}

func (s fileSource) Scope() Scope { return s.scope.clone() }

func (s fileSource) Read() (Layer, bool, error) {
	if s.path == "" {
		return Layer{}, false, nil
	}
	doc, found, err := format.ReadFile(s.path)
	if err != nil {
		return Layer{}, false, wrapLoadError(s.scope.Name, s.path, err)
	}
	if !found {
		return Layer{}, false, nil
	}
	return buildLayer(s.scope, s.path, doc)
}

type envSource struct {
	scope  Scope
	prefix string
}

// EnvSource reads variables named PREFIX + SECTION__KEY. Values are typed with
// ParseValue. The layer is absent when no variable matches.
func EnvSource(prefix string) Source {
	return envSource{
		scope:  NewScope(ScopeEnv, ScopePriorityEnv, WithScopeLabel("Environment")),
		prefix: prefix,
	}
}

func (s envSource) Scope() Scope { return s.scope.clone() }

func (s envSource) Read() (Layer, bool, error) {
	if s.prefix == "" {
		return Layer{}, false, nil
	}
	doc := typeEnvStrings(format.ReadEnv(s.prefix))
	if len(doc) == 0 {
		return Layer{}, false, nil
	}
	return buildLayer(s.scope, s.prefix+"*", doc)
}

func typeEnvStrings(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, entry := range doc {
		switch typed := entry.(type) {
		case map[string]any:
			out[key] = typeEnvStrings(typed)
		case string:
			out[key] = ParseValue(typed)
		default:
			out[key] = typed
		}
	}
	return out
}

type treeSource struct {
	layer Layer
}

// TreeSource serves a tree that is already in memory, such as a snapshot
// restored from a state store.
func TreeSource(scope Scope, tree Tree, opts ...LayerOption) Source {
	return treeSource{layer: NewLayer(scope, tree, opts...)}
}

func (s treeSource) Scope() Scope { return s.layer.Scope.clone() }

func (s treeSource) Read() (Layer, bool, error) {
	layer := s.layer.clone()
	if layer.SnapshotID == "" {
		layer.SnapshotID = SnapshotIDFor(layer.Scope.Name, layer.Snapshot)
	}
	return layer, true, nil
}

func buildLayer(scope Scope, name string, doc map[string]any) (Layer, bool, error) {
	tree, err := TreeFromMap(doc)
	if err != nil {
		return Layer{}, false, wrapLoadError(scope.Name, name, err)
	}
	layer := NewLayer(scope, tree)
	layer.SnapshotID = SnapshotIDFor(scope.Name, tree)
	return layer, true, nil
}

// SnapshotIDFor derives a stable UUID from a layer's scope and contents so identical
// sources report identical IDs across loads.
func SnapshotIDFor(scope string, tree Tree) string {
	if tree == nil {
		tree = Tree{}
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return ""
	}
	name := fmt.Sprintf("optstore:%s:%s", scope, payload)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
