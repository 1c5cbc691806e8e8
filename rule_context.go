package hierconf

import (
	"fmt"
	"time"
)

// Response wraps an evaluation result.
type Response[T any] struct {
	Value T
}

// RuleContext is everything an expression can see besides its own text.
//
// Top-level keys of a map Snapshot become variables. now, args, metadata and
// scope are always bound and take precedence over snapshot keys of the same
// name.
type RuleContext struct {
	Snapshot any
	// Lookup backs get(path). When nil, get walks Snapshot.
	Lookup    func(path string) (any, bool)
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Scope     Scope
	ScopeName string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaultScope(scope Scope) RuleContext {
	if ctx.Scope.isZero() && !scope.isZero() {
		ctx.Scope = scope.clone()
	}
	if ctx.ScopeName == "" {
		ctx.ScopeName = ctx.Scope.Name
	}
	return ctx
}

func (ctx RuleContext) scopeLabel() string {
	switch {
	case ctx.Scope.Name != "":
		return ctx.Scope.Name
	case ctx.ScopeName != "":
		return ctx.ScopeName
	}
	return "unknown"
}

// scopeBinding is the value of the scope variable, or nil when the context
// has no scope.
func (ctx RuleContext) scopeBinding() map[string]any {
	if !ctx.Scope.isZero() {
		binding := map[string]any{
			"name":     ctx.Scope.Name,
			"label":    ctx.Scope.Label,
			"priority": ctx.Scope.Priority,
		}
		if len(ctx.Scope.Metadata) > 0 {
			binding["metadata"] = copyMetadata(ctx.Scope.Metadata)
		}
		return binding
	}
	if ctx.ScopeName != "" {
		return map[string]any{"name": ctx.ScopeName}
	}
	return nil
}

// lookup backs get(path); missing paths yield nil.
func (ctx RuleContext) lookup(path string) any {
	var value any
	if ctx.Lookup != nil {
		value, _ = ctx.Lookup(path)
	} else {
		value, _ = lookupPlain(ctx.Snapshot, path)
	}
	return value
}

// lookupPlain walks nested map[string]any and []any values by dot path.
func lookupPlain(value any, path string) (any, bool) {
	if path == "" {
		return value, value != nil
	}
	for _, segment := range splitPath(path) {
		switch typed := value.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			value = next
		case []any:
			index, ok := parseIndex(segment, len(typed))
			if !ok {
				return nil, false
			}
			value = typed[index]
		default:
			return nil, false
		}
	}
	return value, true
}

// ruleEnvironment is the variable set every engine starts from.
func ruleEnvironment(ctx RuleContext) map[string]any {
	env := map[string]any{}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			env[key] = value
		}
	}
	now := time.Now()
	if ctx.Now != nil {
		now = *ctx.Now
	}
	env["now"] = now
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	if binding := ctx.scopeBinding(); binding != nil {
		env["scope"] = binding
	}
	return env
}

// Evaluator runs expressions in one rule language.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is an expression parsed once and run many times.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption adjusts a CompiledRule.
type CompileOption func(*compileConfig)

type compileConfig struct {
	expectBool bool
}

// ExpectBool makes the rule fail unless it yields a bool.
func ExpectBool() CompileOption {
	return func(cfg *compileConfig) {
		cfg.expectBool = true
	}
}

// finishRule applies opts on top of an engine's compiled rule.
func finishRule(engine, expression string, rule CompiledRule, opts []CompileOption) CompiledRule {
	var cfg compileConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.expectBool {
		return rule
	}
	return boolRule{engine: engine, expression: expression, rule: rule}
}

type boolRule struct {
	engine     string
	expression string
	rule       CompiledRule
}

func (r boolRule) Evaluate(ctx RuleContext) (any, error) {
	value, err := r.rule.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := value.(bool); !ok {
		return nil, annotateEvaluationError(r.engine, r.expression, ctx.scopeLabel(),
			fmt.Errorf("expected bool result, got %T", value))
	}
	return value, nil
}
