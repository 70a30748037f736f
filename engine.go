package opts

import (
	"fmt"
	"sort"
	"strings"
)

// Expression engines understood by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// EngineOption configures any of the built-in evaluators.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineWithProgramCache reuses compiled programs across evaluations. A cache
// may be shared between engines; entries are keyed per engine.
func EngineWithProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// EngineWithFunctionRegistry exposes the registry's functions to expressions,
// both by name and through call(name, args...).
func EngineWithFunctionRegistry(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg engineConfig) cached(engine, key string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(engine + ":" + key)
}

func (cfg engineConfig) store(engine, key string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(engine+":"+key, program)
	}
}

// NewEvaluator returns the evaluator registered under engine.
func NewEvaluator(engine string, opts ...EngineOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("opts: unknown expression engine %q", engine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	if e == nil {
		return "unknown"
	}
	return "custom"
}

// bindings collects the variables every engine exposes: each top-level
// section of the snapshot, plus now, args, metadata and scope.
func bindings(ctx RuleContext) map[string]any {
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	if binding := ctx.scopeBinding(); binding != nil {
		env["scope"] = binding
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	return env
}

func snapshotAsMap(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case Tree:
		return typed.Plain()
	default:
		return map[string]any{}
	}
}

func sectionNames(snapshot map[string]any) []string {
	names := make([]string, 0, len(snapshot))
	for key := range snapshot {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// lookupDotted backs the opt("section.key") helper available in expressions.
func lookupDotted(snapshot map[string]any, key string) (any, error) {
	path, err := ParsePath(key)
	if err != nil {
		return nil, err
	}
	var current any = snapshot
	for _, segment := range path {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
		}
		current, ok = section[segment]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
		}
	}
	return current, nil
}

func emptyExpression(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
}
