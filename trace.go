package opts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Trace records which layers define a key, strongest first. The first entry
// with Found set is the layer that supplied the effective value.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance is one layer's view of a traced key.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      Value  `json:"value,omitzero"`
	Found      bool   `json:"found"`
}

// Winner returns the provenance entry that supplied the effective value.
func (t Trace) Winner() (Provenance, bool) {
	for _, entry := range t.Layers {
		if entry.Found {
			return entry, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// ResolveWithTrace returns the effective value of key alongside the value each
// layer holds for it.
func (o *Options) ResolveWithTrace(key string) (Value, Trace, error) {
	path, err := ParsePath(key)
	if err != nil {
		return Value{}, Trace{}, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}
	value, err := o.tree.Value(path)
	if err != nil {
		return Value{}, Trace{}, err
	}

	layers := o.Layers()
	trace := Trace{Path: path.String(), Layers: make([]Provenance, 0, len(layers))}
	for _, layer := range layers {
		entry := Provenance{
			Scope:      layer.Scope,
			SnapshotID: layer.SnapshotID,
			Path:       trace.Path,
		}
		if leaf, err := layer.Snapshot.Value(path); err == nil {
			entry.Value = leaf
			entry.Found = true
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return value, trace, nil
}

// FlattenWithProvenance is Flat plus, for each key, the layer that supplied
// it. Keys are returned in lexical order.
func (o *Options) FlattenWithProvenance(section string) ([]FlatEntry, error) {
	flat, err := o.Flat(section)
	if err != nil {
		return nil, err
	}
	prefix, _ := ParsePath(section)
	layers := o.Layers()

	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]FlatEntry, 0, len(keys))
	for _, key := range keys {
		entry := FlatEntry{Key: key, Value: flat[key]}
		full := joinPath(prefix.String(), key)
		path, _ := ParsePath(full)
		for _, layer := range layers {
			if _, err := layer.Snapshot.Value(path); err == nil {
				entry.Scope = layer.Scope.Name
				entry.SnapshotID = layer.SnapshotID
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FlatEntry is one flattened key with the scope that supplied it.
type FlatEntry struct {
	Key        string `json:"key"`
	Value      Value  `json:"value"`
	Scope      string `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}
