//go:build !js_eval

package hierconf

type unavailableJSEvaluator struct {
	engineConfig
}

// NewJSEvaluator returns an engine whose every call fails with
// ErrJSUnavailable. Build with -tags js_eval for the goja engine.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return unavailableJSEvaluator{engineConfig: newJSEngineConfig(opts)}
}

func (e unavailableJSEvaluator) Evaluate(_ RuleContext, expression string) (any, error) {
	return nil, compileError(e.name, expression, ErrJSUnavailable)
}

func (e unavailableJSEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	return nil, compileError(e.name, expression, ErrJSUnavailable)
}

func jsEvaluatorAvailable() bool {
	return false
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(unavailableJSEvaluator)
	return ok
}
