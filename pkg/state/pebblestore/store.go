// Package pebblestore is a state.Store backed by a Pebble database. Each
// layer is one key holding a JSON record of its tree and metadata.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/pkg/state"
)

const keyPrefix = "optstore/"

// Options configures Open.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// NoSync skips the WAL fsync on each save. Faster, but the last saves
	// can be lost on a crash.
	NoSync bool
	// PebbleOptions allows tuning Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// Store implements state.Store on Pebble.
type Store struct {
	db        *pebble.DB
	writeSync bool
}

var _ state.Store = (*Store)(nil)

type record struct {
	Tree map[string]any `json:"tree"`
	Meta state.Meta     `json:"meta"`
}

// Open creates or opens the database at opts.DataDir.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", opts.DataDir, err)
	}
	return &Store{db: db, writeSync: !opts.NoSync}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, ref state.Ref) (opts.Tree, state.Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, state.Meta{}, false, err
	}
	key, err := storageKey(ref)
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, state.Meta{}, false, nil
	}
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("pebblestore: get %s: %w", key, err)
	}
	defer closer.Close()

	var rec record
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	if err := decoder.Decode(&rec); err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("pebblestore: decode %s: %w", key, err)
	}
	tree, err := opts.TreeFromMap(rec.Tree)
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("pebblestore: decode %s: %w", key, err)
	}
	return tree, rec.Meta, true, nil
}

func (s *Store) Save(ctx context.Context, ref state.Ref, tree opts.Tree, meta state.Meta) (state.Meta, error) {
	if err := ctx.Err(); err != nil {
		return state.Meta{}, err
	}
	key, err := storageKey(ref)
	if err != nil {
		return state.Meta{}, err
	}
	payload, err := json.Marshal(record{Tree: plainWithValues(tree), Meta: meta})
	if err != nil {
		return state.Meta{}, fmt.Errorf("pebblestore: encode %s: %w", key, err)
	}
	writeOpts := pebble.NoSync
	if s.writeSync {
		writeOpts = pebble.Sync
	}
	if err := s.db.Set(key, payload, writeOpts); err != nil {
		return state.Meta{}, fmt.Errorf("pebblestore: set %s: %w", key, err)
	}
	return meta, nil
}

// Delete removes the layer stored for ref, if any.
func (s *Store) Delete(ref state.Ref) error {
	key, err := storageKey(ref)
	if err != nil {
		return err
	}
	return s.db.Delete(key, pebble.Sync)
}

// Identifiers lists the Ref identifiers currently stored, in key order.
func (s *Store) Identifiers() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix[:len(keyPrefix)-1] + "0"),
	})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: iterate: %w", err)
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()[len(keyPrefix):]))
	}
	return ids, iter.Error()
}

func storageKey(ref state.Ref) ([]byte, error) {
	id, err := ref.Identifier()
	if err != nil {
		return nil, err
	}
	return []byte(keyPrefix + id), nil
}

// plainWithValues keeps opts.Value leaves so integral floats stay floats in
// the JSON record.
func plainWithValues(tree opts.Tree) map[string]any {
	out := make(map[string]any, len(tree))
	for key, node := range tree {
		switch typed := node.(type) {
		case opts.Tree:
			out[key] = plainWithValues(typed)
		case opts.Value:
			out[key] = typed
		}
	}
	return out
}
