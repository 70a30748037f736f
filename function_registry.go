package opts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrFunctionName reports a helper name that cannot be bound in every
	// engine: empty, not an identifier, or shadowing a built-in binding.
	ErrFunctionName = errors.New("opts: invalid function name")
	// ErrFunctionExists reports a second helper whose name differs from an
	// existing one only by case.
	ErrFunctionExists = errors.New("opts: function already registered")
	// ErrFunctionNotFound reports a call to a helper that was never registered.
	ErrFunctionNotFound = errors.New("opts: function not registered")
)

// reservedNames are bound by the engines themselves.
var reservedNames = map[string]struct{}{
	"now": {}, "args": {}, "metadata": {}, "scope": {}, "opt": {}, "call": {},
}

// Function is a helper callable from expressions.
type Function func(args ...any) (any, error)

type registered struct {
	name string
	fn   Function
}

// FunctionRegistry holds the helpers rules may call. Lookups ignore case, but
// each helper is bound into the engines under the spelling it was registered
// with. It is safe for concurrent use.
type FunctionRegistry struct {
	mu      sync.RWMutex
	entries map[string]registered
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{entries: map[string]registered{}}
}

// Register adds fn under name. name must be an identifier that does not
// shadow now, args, metadata, scope, opt or call.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if err := checkFunctionName(name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %q has no implementation", ErrFunctionName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = map[string]registered{}
	}
	key := strings.ToLower(name)
	if existing, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %q clashes with %q", ErrFunctionExists, name, existing.name)
	}
	r.entries[key] = registered{name: name, fn: fn}
	return nil
}

func checkFunctionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrFunctionName)
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return fmt.Errorf("%w: %q is not an identifier", ErrFunctionName, name)
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return fmt.Errorf("%w: %q is a built-in binding", ErrFunctionName, name)
	}
	return nil
}

// Call runs the helper registered under name, in any case.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	r.mu.RLock()
	entry, ok := r.entries[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return entry.fn(args...)
}

// Names lists helpers by their registered spelling, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone copies the registry so later registrations on either side stay local.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make(map[string]registered, len(r.entries))
	for key, entry := range r.entries {
		entries[key] = entry
	}
	return &FunctionRegistry{entries: entries}
}

func (r *FunctionRegistry) bound(name string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

// WithFunctionRegistry makes a copy of registry available to the default
// evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *optionsConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction adds one helper for the default evaluator. A name that
// Register rejects makes New fail with the same error.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *optionsConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
