package opts

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-optstore/internal/hydrate"
)

// DecodeOption adjusts Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	strict bool
}

// DecodeStrict makes Decode fail on section keys that T does not declare.
func DecodeStrict() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.strict = true
	}
}

// Decode copies section into a new T using its json tags. When T (or *T)
// has a Validate() error method it runs after decoding.
func Decode[T any](o *Options, section string, opts ...DecodeOption) (T, error) {
	var zero T
	cfg := decodeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	tree, err := o.Section(section)
	if err != nil {
		return zero, err
	}

	decoderOpts := []hydrate.DecoderOption[T]{
		hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
			return validateValue(value)
		}),
	}
	if cfg.strict {
		decoderOpts = append(decoderOpts, hydrate.WithStrict[T]())
	}
	out, err := hydrate.NewDecoder(decoderOpts...).Decode(hydrate.Context{
		Section: section,
		Scope:   o.winningScope(section),
	}, tree.Plain())
	if err != nil {
		return zero, fmt.Errorf("opts: decode %q: %w", section, err)
	}
	return out, nil
}

func validateValue[T any](value *T) error {
	if value == nil {
		return nil
	}
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(*value); rv.IsValid() && rv.Kind() != reflect.Pointer {
		if v, ok := rv.Interface().(interface{ Validate() error }); ok {
			return v.Validate()
		}
	}
	return nil
}

// winningScope names the strongest layer that contributes to section.
func (o *Options) winningScope(section string) string {
	path, err := ParsePath(section)
	if err != nil {
		return ""
	}
	for _, layer := range o.Layers() {
		if _, err := layer.Snapshot.Section(path); err == nil {
			return layer.Scope.Name
		}
	}
	return ""
}
