package hierconf

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures the expr-lang evaluator.
type ExprEvaluatorOption func(*exprEvaluator)

func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.useCache(cache)
	}
}

// ExprWithFunctionRegistry exposes registry entries both as call(name, ...)
// and as top-level functions.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.useRegistry(registry)
	}
}

type exprEvaluator struct {
	engineConfig
}

// NewExprEvaluator returns the default engine, backed by expr-lang/expr.
//
// Without a ProgramCache each expression is checked against the variables of
// the snapshot it runs on. Cached programs are compiled once with undefined
// variables allowed so they can run against any snapshot.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{engineConfig: engineConfig{name: "expr"}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	env := e.environment(ctx)
	var (
		program *exprvm.Program
		err     error
	)
	if e.cache == nil {
		program, err = e.compile(expression, exprlang.Env(env))
	} else {
		program, err = e.shared(expression)
	}
	if err != nil {
		return nil, err
	}
	value, err := exprlang.Run(program, env)
	return value, annotateEvaluationError(e.name, expression, ctx.scopeLabel(), err)
}

func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	program, err := e.shared(expression)
	if err != nil {
		return nil, err
	}
	return finishRule(e.name, expression, exprRule{evaluator: e, program: program, expression: expression}, opts), nil
}

// shared returns the snapshot-independent program for expression, from the
// cache when one is configured.
func (e *exprEvaluator) shared(expression string) (*exprvm.Program, error) {
	key := e.programKey(expression)
	if program, ok := cachedProgram[*exprvm.Program](e.engineConfig, key); ok {
		return program, nil
	}
	program, err := e.compile(expression, exprlang.Env(map[string]any{}), exprlang.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.storeProgram(key, program)
	return program, nil
}

func (e *exprEvaluator) compile(expression string, options ...exprlang.Option) (*exprvm.Program, error) {
	for _, name := range e.customFunctions() {
		options = append(options, exprlang.Function(name, e.bind(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, compileError(e.name, expression, err)
	}
	return program, nil
}

// environment adds get and call to the shared rule variables. Custom
// functions are declared at compile time so they are not repeated here.
func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	env := ruleEnvironment(ctx)
	env["get"] = func(path string) any {
		return ctx.lookup(path)
	}
	if e.registry != nil {
		registry := e.registry
		env["call"] = func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
	}
	return env
}

type exprRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	value, err := exprlang.Run(r.program, r.evaluator.environment(ctx))
	return value, annotateEvaluationError(r.evaluator.name, r.expression, ctx.scopeLabel(), err)
}
