package opts

import (
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cfg engineConfig
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Every top-level
// section becomes a dyn variable, so section names must be valid CEL
// identifiers. Dotted lookups go through snapshot.opt("section.key").
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	return &celEvaluator{cfg: applyEngineOptions(opts)}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression(EngineCEL)
	}
	ctx = ctx.withDefaults()
	program, err := e.program(expression, sectionNames(snapshotAsMap(ctx.Snapshot)))
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.scopeLabel(), err)
	}
	return e.run(ctx, expression, program)
}

// Compile parses expression up front. Type checking waits for the first
// snapshot, since section variables are declared from its keys.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, emptyExpression(EngineCEL)
	}
	env, err := e.environment(nil)
	if err != nil {
		return nil, wrapEvaluatorError(EngineCEL, err)
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, "", issues.Err())
	}
	return compiledRuleFunc(func(ctx RuleContext) (any, error) {
		return e.Evaluate(ctx, expression)
	}), nil
}

func (e *celEvaluator) program(expression string, sections []string) (celgo.Program, error) {
	key := strings.Join(sections, ",") + "|" + expression
	if cached, ok := e.cfg.cached(EngineCEL, key); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	env, err := e.environment(sections)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cfg.store(EngineCEL, key, program)
	return program, nil
}

func (e *celEvaluator) environment(sections []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("scope", celgo.DynType),
		celgo.Variable("snapshot", celgo.DynType),
		celgo.Function("opt",
			celgo.MemberOverload("snapshot_opt_string", []*celgo.Type{celgo.DynType, celgo.StringType}, celgo.DynType,
				celgo.BinaryBinding(optBinding)),
		),
	}
	if e.cfg.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding)),
		)))
	}
	for _, name := range sections {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) run(ctx RuleContext, expression string, program celgo.Program) (any, error) {
	activation := bindings(ctx)
	activation["snapshot"] = snapshotAsMap(ctx.Snapshot)
	if _, ok := activation["scope"]; !ok {
		activation["scope"] = map[string]any{}
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.scopeLabel(), err)
	}
	return out.Value(), nil
}

// optBinding resolves snapshot.opt("section.key").
func optBinding(snapshot, key ref.Val) ref.Val {
	name, ok := key.Value().(string)
	if !ok {
		return types.NewErr("opts: opt key must be a string")
	}
	root, ok := snapshot.Value().(map[string]any)
	if !ok {
		return types.NewErr("opts: opt receiver must be the snapshot")
	}
	value, err := lookupDotted(root, name)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	return types.DefaultTypeAdapter.NativeToValue(value)
}

// callBinding implements call(name, [args...]).
func (e *celEvaluator) callBinding(values ...ref.Val) ref.Val {
	if len(values) != 2 {
		return types.NewErr("opts: call expects a name and an argument list")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("opts: call name must be string")
	}
	var args []any
	switch list := values[1].Value().(type) {
	case []any:
		args = list
	case []ref.Val:
		for _, item := range list {
			args = append(args, item.Value())
		}
	default:
		args = []any{list}
	}
	result, err := e.cfg.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
