//go:build js_eval

package hierconf

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	engineConfig
}

// NewJSEvaluator returns an engine that runs rules as JavaScript expressions
// on goja. Every evaluation gets a fresh runtime.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{engineConfig: newJSEngineConfig(opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	value, err := e.run(ctx, program)
	return value, annotateEvaluationError(e.name, expression, ctx.scopeLabel(), err)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return finishRule(e.name, expression, jsRule{evaluator: e, expression: expression, program: program}, opts), nil
}

// program wraps expression in an immediately invoked function so statements
// like `return` are rejected and the result is the expression value.
func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	key := e.programKey(expression)
	if program, ok := cachedProgram[*goja.Program](e.engineConfig, key); ok {
		return program, nil
	}
	source := fmt.Sprintf("(function(){ return (%s); })()", expression)
	program, err := goja.Compile("rule.js", source, true)
	if err != nil {
		return nil, compileError(e.name, expression, err)
	}
	e.storeProgram(key, program)
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (any, error) {
	vm := goja.New()
	if err := e.bindRuntime(vm, ctx); err != nil {
		return nil, err
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEvaluator) bindRuntime(vm *goja.Runtime, ctx RuleContext) error {
	bindings := ruleEnvironment(ctx)
	bindings["get"] = func(path string) any {
		return ctx.lookup(path)
	}
	if e.registry != nil {
		registry := e.registry
		bindings["call"] = func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
		for _, name := range e.customFunctions() {
			if _, taken := bindings[name]; taken {
				continue
			}
			bindings[name] = e.bind(name)
		}
	}
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("bind %q: %w", name, err)
		}
	}
	return nil
}

type jsRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	value, err := r.evaluator.run(ctx, r.program)
	return value, annotateEvaluationError(r.evaluator.name, r.expression, ctx.scopeLabel(), err)
}

func jsEvaluatorAvailable() bool {
	return true
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(*jsEvaluator)
	return ok
}
