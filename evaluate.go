package hierconf

import (
	"errors"
	"strings"
)

var ErrNoEvaluator = errors.New("hierconf: evaluator not configured")

// Evaluate runs expr against the merged tree using the configured evaluator.
// Top-level keys are variables and get("a.b") looks up any dot path.
func (m *Manager) Evaluate(expr string) (Response[any], error) {
	return m.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx. A nil ctx.Snapshot falls back to the
// merged tree, as does a nil ctx.Lookup.
func (m *Manager) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if strings.TrimSpace(expr) == "" {
		return Response[any]{}, errEmptyExpression
	}
	tree, err := m.mergedTree()
	if err != nil {
		return Response[any]{}, err
	}
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = tree.ToPlainValue()
	}
	if ctx.Lookup == nil {
		ctx.Lookup = func(path string) (any, bool) {
			node, ok := tree.NodeAt(path)
			if !ok {
				return nil, false
			}
			return node.ToPlainValue(), true
		}
	}
	ctx = ctx.withDefaults().withDefaultScope(m.cfg.scope)
	value, err := timeEvaluation(m.cfg.evaluatorLog(), evaluatorEngineName(evaluator), expr, ctx.scopeLabel(), func() (any, error) {
		return evaluator.Evaluate(ctx, expr)
	})
	if err != nil {
		return Response[any]{}, err
	}
	return Response[any]{Value: value}, nil
}

func (m *Manager) resolveEvaluator() (Evaluator, error) {
	if m.cfg.evaluator != nil {
		return m.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if m.cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(m.cfg.programCache))
	}
	if m.cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(m.cfg.functions))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	m.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
