package opts

import (
	_ "embed"

	"github.com/goliatone/go-optstore/internal/format"
)

//go:embed config-default.yaml
var defaultDocument []byte

// DefaultDocument returns a copy of the embedded default configuration.
func DefaultDocument() []byte {
	out := make([]byte, len(defaultDocument))
	copy(out, defaultDocument)
	return out
}

// DefaultSource returns the embedded default configuration as the weakest
// layer of a store.
func DefaultSource() Source {
	return BytesSource(
		NewScope(ScopeDefaults, ScopePriorityDefaults, WithScopeLabel("Defaults")),
		"config-default.yaml",
		defaultDocument,
		format.YAML,
	)
}
