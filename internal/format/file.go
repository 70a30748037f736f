package format

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// ReadFile parses the document at path using the format implied by its
// extension. A missing file reports found=false and no error.
func ReadFile(path string) (doc map[string]any, found bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if info.IsDir() {
		return nil, true, fmt.Errorf("format: %s is a directory", path)
	}

	parser, err := Parser(FromPath(path))
	if err != nil {
		return nil, true, err
	}
	doc, err = load(file.Provider(path), parser)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	return doc, true, nil
}

// WriteFile encodes doc in the format implied by path and writes it.
func WriteFile(path string, doc map[string]any) error {
	out, err := Marshal(FromPath(path), doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// SectionSeparator splits environment variable names into sections.
const SectionSeparator = "__"

// ReadEnv collects variables starting with prefix into a nested map of raw
// strings. LOADER__COMBO_MIN_PRED under prefix APP_ becomes
// loader.combo_min_pred.
func ReadEnv(prefix string) map[string]any {
	provider := env.Provider(prefix, Delimiter, func(name string) string {
		return EnvKey(prefix, name)
	})
	doc, err := load(provider, nil)
	if err != nil {
		return map[string]any{}
	}
	return doc
}

// EnvKey maps an environment variable name to a dotted key.
func EnvKey(prefix, name string) string {
	trimmed := strings.TrimPrefix(name, prefix)
	trimmed = strings.ToLower(trimmed)
	return strings.ReplaceAll(trimmed, strings.ToLower(SectionSeparator), Delimiter)
}
