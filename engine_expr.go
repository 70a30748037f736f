package opts

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cfg engineConfig
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. It is the
// default engine.
func NewExprEvaluator(opts ...EngineOption) Evaluator {
	return &exprEvaluator{cfg: applyEngineOptions(opts)}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression(EngineExpr)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx.withDefaults(), expression, program)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, emptyExpression(EngineExpr)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return compiledRuleFunc(func(ctx RuleContext) (any, error) {
		return e.run(ctx.withDefaults(), expression, program)
	}), nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	if cached, ok := e.cfg.cached(EngineExpr, expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.cfg.registry != nil {
		for _, name := range e.cfg.registry.Names() {
			options = append(options, exprlang.Function(name, e.cfg.registry.bound(name)))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, "", err)
	}
	e.cfg.store(EngineExpr, expression, program)
	return program, nil
}

func (e *exprEvaluator) run(ctx RuleContext, expression string, program *exprvm.Program) (any, error) {
	env := bindings(ctx)
	snapshot := snapshotAsMap(ctx.Snapshot)
	env["opt"] = func(key string) (any, error) {
		return lookupDotted(snapshot, key)
	}
	if e.cfg.registry != nil {
		env["call"] = e.cfg.registry.Call
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, ctx.scopeLabel(), err)
	}
	return result, nil
}

type compiledRuleFunc func(ctx RuleContext) (any, error)

func (fn compiledRuleFunc) Evaluate(ctx RuleContext) (any, error) {
	return fn(ctx)
}
