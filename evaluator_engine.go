package hierconf

import (
	"errors"
	"strings"
)

// ErrJSUnavailable is returned by the JS engine in builds without the
// js_eval tag.
var ErrJSUnavailable = errors.New("hierconf: js evaluator requires the js_eval build tag")

// engineConfig is the state every evaluator engine carries: the cache its
// compiled programs go into and the custom functions it exposes.
type engineConfig struct {
	name     string
	cache    ProgramCache
	registry *FunctionRegistry
}

func (c *engineConfig) useCache(cache ProgramCache) {
	c.cache = cache
}

func (c *engineConfig) useRegistry(registry *FunctionRegistry) {
	if registry != nil {
		c.registry = registry.Clone()
	}
}

func (c engineConfig) programKey(expression string) string {
	return c.name + ":" + expression
}

// cachedProgram returns the program stored under key when it has type T.
func cachedProgram[T any](c engineConfig, key string) (T, bool) {
	var zero T
	if c.cache == nil {
		return zero, false
	}
	cached, ok := c.cache.Get(key)
	if !ok {
		return zero, false
	}
	program, ok := cached.(T)
	return program, ok
}

func (c engineConfig) storeProgram(key string, program any) {
	if c.cache != nil {
		c.cache.Set(key, program)
	}
}

// checkExpression rejects blank expressions before any engine work happens.
func (c engineConfig) checkExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return &EvaluationError{Engine: c.name, Phase: PhaseCompile, Err: errEmptyExpression}
	}
	return nil
}

// customFunctions lists registered names that do not collide with the
// built-in get and call helpers.
func (c engineConfig) customFunctions() []string {
	if c.registry == nil {
		return nil
	}
	var names []string
	for _, name := range c.registry.Names() {
		if reservedFunctionName(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// bind returns a variadic Go function dispatching to the registry entry name.
func (c engineConfig) bind(name string) func(...any) (any, error) {
	registry := c.registry
	return func(arguments ...any) (any, error) {
		return registry.Call(name, arguments...)
	}
}

// JSEvaluatorOption configures the goja-backed evaluator. Options are
// accepted in every build so callers compile without the js_eval tag.
type JSEvaluatorOption func(*engineConfig)

func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.useCache(cache)
	}
}

func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.useRegistry(registry)
	}
}

func newJSEngineConfig(opts []JSEvaluatorOption) engineConfig {
	cfg := engineConfig{name: "js"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
