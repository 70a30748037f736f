package opts

import (
	"errors"
	"time"
)

var ErrNoEvaluator = errors.New("opts: evaluator not configured")

// Evaluate runs expr against the effective configuration. Top-level sections
// are bound as variables, so "loader.combo_min_pred > 3" works in every
// engine.
func (o *Options) Evaluate(expr string) (Response[any], error) {
	return o.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr with caller supplied args and metadata. A nil
// ctx.Snapshot is replaced by the effective configuration.
func (o *Options) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	evaluator, err := o.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	ctx = o.ruleContext(ctx)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	o.logEvaluation(evaluator, ctx, expr, time.Since(start), evalErr)
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

// Compile prepares expr for repeated evaluation with the store's evaluator.
// Run the rule through EvaluateRule to bind the store state at call time.
func (o *Options) Compile(expr string, opts ...CompileOption) (CompiledRule, error) {
	evaluator, err := o.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	return evaluator.Compile(expr, opts...)
}

// EvaluateRule runs a compiled rule against the current effective
// configuration.
func (o *Options) EvaluateRule(rule CompiledRule, ctx RuleContext) (Response[any], error) {
	if rule == nil {
		return Response[any]{}, ErrNoEvaluator
	}
	value, err := rule.Evaluate(o.ruleContext(ctx))
	if err != nil {
		return Response[any]{}, err
	}
	return Response[any]{Value: value}, nil
}

func (o *Options) ruleContext(ctx RuleContext) RuleContext {
	if ctx.Snapshot == nil {
		ctx.Snapshot = o.tree.Plain()
	}
	return ctx.withDefaultScope(o.cfg.scope).withDefaults()
}

func (o *Options) resolveEvaluator() (Evaluator, error) {
	if o.evaluator != nil {
		return o.evaluator, nil
	}
	if o.cfg.evaluator != nil {
		o.evaluator = o.cfg.evaluator
		return o.evaluator, nil
	}
	var engineOpts []EngineOption
	if o.cfg.programCache != nil {
		engineOpts = append(engineOpts, EngineWithProgramCache(o.cfg.programCache))
	}
	if o.cfg.functions != nil {
		engineOpts = append(engineOpts, EngineWithFunctionRegistry(o.cfg.functions))
	}
	evaluator := NewExprEvaluator(engineOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	o.evaluator = evaluator
	return evaluator, nil
}

func (o *Options) logEvaluation(evaluator Evaluator, ctx RuleContext, expr string, duration time.Duration, err error) {
	logger := o.cfg.evalLogger
	if logger == nil {
		logger = ZerologEvaluatorLogger(o.log)
	}
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(evaluator),
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: duration,
		Err:      err,
	})
}
