package opts

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cfg engineConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime, so scripts cannot leak state between calls.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	return &jsEvaluator{cfg: applyEngineOptions(opts)}
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression(EngineJS)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx.withDefaults(), expression, program)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, emptyExpression(EngineJS)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return compiledRuleFunc(func(ctx RuleContext) (any, error) {
		return e.run(ctx.withDefaults(), expression, program)
	}), nil
}

func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	if cached, ok := e.cfg.cached(EngineJS, expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, "", err)
	}
	e.cfg.store(EngineJS, expression, program)
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	for name, value := range bindings(ctx) {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapEvaluationError(EngineJS, expression, ctx.scopeLabel(), err)
		}
	}
	snapshot := snapshotAsMap(ctx.Snapshot)
	_ = vm.Set("opt", func(key string) (any, error) {
		return lookupDotted(snapshot, key)
	})
	if e.cfg.registry != nil {
		_ = vm.Set("call", e.cfg.registry.Call)
		for _, name := range e.cfg.registry.Names() {
			_ = vm.Set(name, e.cfg.registry.bound(name))
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, ctx.scopeLabel(), err)
	}
	return value.Export(), nil
}
