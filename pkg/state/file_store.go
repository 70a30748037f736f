package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/internal/format"
)

// FileStore writes each layer to Dir/<identifier>.<ext>, in the same formats
// the override file accepts. Meta is derived from file contents on load, so
// Extra does not survive a round trip.
type FileStore struct {
	Dir    string
	Format opts.Format
}

// NewFileStore returns a FileStore rooted at dir. An empty format means YAML.
func NewFileStore(dir string, f opts.Format) *FileStore {
	if f == "" {
		f = opts.FormatYAML
	}
	return &FileStore{Dir: dir, Format: f}
}

// Path returns the file that backs ref.
func (s *FileStore) Path(ref Ref) (string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, filepath.FromSlash(key)+"."+string(s.Format)), nil
}

func (s *FileStore) Load(_ context.Context, ref Ref) (opts.Tree, Meta, bool, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	doc, found, err := format.ReadFile(path)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	if !found {
		return nil, Meta{}, false, nil
	}
	tree, err := opts.TreeFromMap(doc)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	meta := Stamp(ref, tree, Meta{})
	if info, err := os.Stat(path); err == nil {
		meta.UpdatedAt = info.ModTime().UTC()
	}
	return tree, meta, true, nil
}

func (s *FileStore) Save(_ context.Context, ref Ref, tree opts.Tree, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create %s: %w", filepath.Dir(path), err)
	}
	if err := format.WriteFile(path, tree.Plain()); err != nil {
		return Meta{}, fmt.Errorf("state: write %s: %w", path, err)
	}
	return cloneMeta(meta), nil
}
