package opts

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound indicates a dotted key that does not resolve to a value.
	ErrKeyNotFound = errors.New("opts: key not found")
	// ErrSectionNotFound indicates Flat was asked for a section that does not
	// exist or that names a leaf.
	ErrSectionNotFound = errors.New("opts: section not found")
	// ErrNotLeaf indicates a key that resolves to a section where a value was
	// expected.
	ErrNotLeaf = errors.New("opts: key names a section")
	// ErrPathConflict indicates Set would have to descend through a leaf or
	// replace a whole section with a leaf.
	ErrPathConflict = errors.New("opts: path conflicts with existing entry")
	// ErrInvalidPath indicates an empty key or a key with empty segments.
	ErrInvalidPath = errors.New("opts: invalid path")
	// ErrUnsupportedValue indicates a leaf that is not a bool, integer, float
	// or string.
	ErrUnsupportedValue = errors.New("opts: unsupported value type")
)

// LoadError reports a configuration source that exists but could not be read
// or parsed. No store is returned alongside it.
type LoadError struct {
	Source string
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("opts: load %s source %q: %v", e.Source, e.Path, e.Err)
	}
	return fmt.Sprintf("opts: load %s source: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapLoadError(source, path string, err error) error {
	if err == nil {
		return nil
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &LoadError{Source: source, Path: path, Err: err}
}
