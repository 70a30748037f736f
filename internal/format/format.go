// Package format reads and writes configuration documents. Parsing goes
// through koanf and every document is unflattened on the "." delimiter, so a
// literal dotted key in a file lands in the same nested section as its
// spelled-out form.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format names a supported document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// Delimiter separates nested keys when documents are flattened.
const Delimiter = "."

// ErrUnknownFormat is returned by Parse for formats with no parser.
var ErrUnknownFormat = errors.New("format: unknown format")

// FromPath picks a format from the file extension. Anything that is not JSON
// or TOML is read as YAML.
func FromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON
	case ".toml":
		return TOML
	default:
		return YAML
	}
}

// Lookup resolves a user supplied format name.
func Lookup(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml", "":
		return YAML, nil
	case "json":
		return JSON, nil
	case "toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Parser returns the koanf parser for f.
func Parser(f Format) (koanf.Parser, error) {
	switch f {
	case YAML:
		return yaml.Parser(), nil
	case JSON:
		return NumberJSON(), nil
	case TOML:
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Parse decodes data into a nested map.
func Parse(f Format, data []byte) (map[string]any, error) {
	parser, err := Parser(f)
	if err != nil {
		return nil, err
	}
	return load(rawbytes.Provider(data), parser)
}

// Marshal encodes a nested map in format f.
func Marshal(f Format, doc map[string]any) ([]byte, error) {
	parser, err := Parser(f)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := parser.Marshal(keepFloats(f, doc))
	if err != nil {
		return nil, fmt.Errorf("format: marshal %s: %w", f, err)
	}
	return out, nil
}

func load(provider koanf.Provider, parser koanf.Parser) (map[string]any, error) {
	k := koanf.New(Delimiter)
	if err := k.Load(provider, parser); err != nil {
		return nil, err
	}
	// Raw keeps "a.b" keys as written; All is flat, so rebuild the nesting.
	return maps.Unflatten(k.All(), Delimiter), nil
}
