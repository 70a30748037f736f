package cli

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/internal/format"
)

// Settings are the runtime knobs of optsctl itself, not the configuration it
// manages.
type Settings struct {
	Config    string `env:"OPTSCTL_CONFIG"`
	EnvPrefix string `env:"OPTSCTL_ENV_PREFIX"`
	LogLevel  string `env:"OPTSCTL_LOG_LEVEL"`
	LogFile   string `env:"OPTSCTL_LOG_FILE"`
	Format    string `env:"OPTSCTL_FORMAT"`
}

type settingsBuilder struct {
	layers []*Settings
	err    error
}

func newSettingsBuilder() *settingsBuilder {
	return &settingsBuilder{layers: make([]*Settings, 0, 3)}
}

// withFlags must be added before withEnv: earlier layers win.
func (b *settingsBuilder) withFlags(flags Settings) *settingsBuilder {
	b.layers = append(b.layers, &flags)
	return b
}

func (b *settingsBuilder) withEnv(environ map[string]string) *settingsBuilder {
	fromEnv := &Settings{}
	if err := env.ParseWithOptions(fromEnv, env.Options{Environment: environ}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("read environment: %w", err))
		return b
	}
	b.layers = append(b.layers, fromEnv)
	return b
}

func (b *settingsBuilder) withDefaults() *settingsBuilder {
	b.layers = append(b.layers, &Settings{LogLevel: "warn", Format: string(opts.FormatYAML)})
	return b
}

func (b *settingsBuilder) build() (Settings, error) {
	if b.err != nil {
		return Settings{}, b.err
	}
	out := Settings{}
	for _, layer := range b.layers {
		if err := mergo.Merge(&out, layer); err != nil {
			return Settings{}, fmt.Errorf("merge settings: %w", err)
		}
	}
	return out, out.validate()
}

func (s Settings) validate() error {
	if _, err := format.Lookup(s.Format); err != nil {
		return usageError(err)
	}
	return nil
}

// OutputFormat returns the validated output format.
func (s Settings) OutputFormat() opts.Format {
	f, err := format.Lookup(s.Format)
	if err != nil {
		return opts.FormatYAML
	}
	return f
}
