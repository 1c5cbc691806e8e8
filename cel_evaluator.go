package hierconf

import (
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.useCache(cache)
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are reachable through call(name, [args]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.useRegistry(registry)
	}
}

const celGetOverload = "hierconf_get_string"

// celProgram is the checked expression; programs are planned per evaluation
// so get() can bind to the caller's lookup.
type celProgram struct {
	env *celgo.Env
	ast *celgo.Ast
}

type celEvaluator struct {
	engineConfig
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{engineConfig: engineConfig{name: "cel"}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	activation := e.activation(ctx)
	program, err := e.loadOrCompile(expression, activation)
	if err != nil {
		return nil, compileError(e.name, expression, err)
	}
	value, err := e.run(program, ctx, activation)
	return value, annotateEvaluationError(e.name, expression, ctx.scopeLabel(), err)
}

func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if err := e.checkExpression(expression); err != nil {
		return nil, err
	}
	if err := celSyntaxCheck(expression); err != nil {
		return nil, compileError(e.name, expression, err)
	}
	rule := &celCompiledRule{evaluator: e, expression: expression}
	return finishRule(e.name, expression, rule, opts), nil
}

// celSyntaxCheck parses expression without declarations. Type checking waits
// until the variables of a snapshot are known.
func celSyntaxCheck(expression string) error {
	env, err := celgo.NewEnv()
	if err != nil {
		return err
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

func (e *celEvaluator) run(program *celProgram, ctx RuleContext, activation map[string]any) (any, error) {
	get := &functions.Overload{
		Operator: celGetOverload,
		Unary: func(value ref.Val) ref.Val {
			path, ok := value.Value().(string)
			if !ok {
				return types.NewErr("hierconf: get path must be a string")
			}
			result := ctx.lookup(path)
			if result == nil {
				return types.NullValue
			}
			return types.DefaultTypeAdapter.NativeToValue(result)
		},
	}
	prg, err := program.env.Program(program.ast, celgo.Functions(get))
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCompile(expression string, activation map[string]any) (*celProgram, error) {
	key := e.programKey(expression) + "\x00" + activationSignature(activation)
	if program, ok := cachedProgram[*celProgram](e.engineConfig, key); ok {
		return program, nil
	}

	env, err := e.buildEnv(activation)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	bundle := &celProgram{env: env, ast: ast}
	e.storeProgram(key, bundle)
	return bundle, nil
}

// activationSignature lists the declared variable names; a checked AST is
// only valid for the declarations it was compiled against.
func activationSignature(activation map[string]any) string {
	names := make([]string, 0, len(activation))
	for name := range activation {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func (e *celEvaluator) buildEnv(activation map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Function("get",
			celgo.Overload(celGetOverload, []*celgo.Type{celgo.StringType}, celgo.DynType),
		),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("hierconf_call_string",
				[]*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.callRegistry(name, nil)
				}),
			),
			celgo.Overload("hierconf_call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)}, celgo.DynType,
				celgo.BinaryBinding(func(name, args ref.Val) ref.Val {
					return e.callRegistry(name, args)
				}),
			),
		))
	}
	for key := range activation {
		if key == "now" {
			opts = append(opts, celgo.Variable(key, celgo.TimestampType))
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	activation := ruleEnvironment(ctx)
	if _, ok := activation["scope"]; !ok {
		activation["scope"] = map[string]any{}
	}
	for key := range activation {
		if !validCELIdentifier(key) {
			delete(activation, key)
		}
	}
	return activation
}

// validCELIdentifier filters snapshot keys CEL cannot declare as variables;
// they stay reachable through get().
func validCELIdentifier(name string) bool {
	if name == "" || celReserved[name] {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

var celReserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true,
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "let": true,
	"loop": true, "package": true, "namespace": true, "return": true,
	"var": true, "void": true, "while": true, "get": true, "call": true,
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}

func (e *celEvaluator) callRegistry(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("hierconf: call name must be string")
	}
	var args []any
	if argsVal != nil {
		list, ok := argsVal.(traits.Lister)
		if !ok {
			return types.NewErr("hierconf: call arguments must be a list")
		}
		size, _ := list.Size().Value().(int64)
		args = make([]any, 0, size)
		for i := int64(0); i < size; i++ {
			args = append(args, list.Get(types.Int(i)).Value())
		}
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
