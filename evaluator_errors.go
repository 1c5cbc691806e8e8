package hierconf

import (
	"errors"
	"fmt"
	"strings"
)

// Phases reported by EvaluationError.
const (
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

var errEmptyExpression = fmt.Errorf("%w: expression must not be empty", ErrUsage)

// EvaluationError reports a rule that failed to compile or run, with the
// engine and scope it was evaluated under.
type EvaluationError struct {
	Engine string
	Phase  string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	engine := e.Engine
	if engine == "" {
		engine = "evaluator"
	}
	phase := e.Phase
	if phase == "" {
		phase = PhaseRun
	}
	msg := fmt.Sprintf("hierconf: %s %s %s", engine, phase, describeExpression(e.Expr))
	if e.Scope != "" && e.Scope != "unknown" {
		msg += fmt.Sprintf(" in scope %q", e.Scope)
	}
	return msg + ": " + fmt.Sprint(e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const maxDescribedExpression = 80

// describeExpression quotes expr on a single line, cut to
// maxDescribedExpression runes.
func describeExpression(expr string) string {
	flat := strings.Join(strings.Fields(expr), " ")
	if flat == "" {
		return "<empty>"
	}
	runes := []rune(flat)
	if len(runes) > maxDescribedExpression {
		return fmt.Sprintf("%q...", string(runes[:maxDescribedExpression]))
	}
	return fmt.Sprintf("%q", flat)
}

func compileError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	return &EvaluationError{Engine: engine, Phase: PhaseCompile, Expr: expr, Err: err}
}

// annotateEvaluationError returns err as an EvaluationError. An
// EvaluationError already in the chain only has its blank fields filled.
func annotateEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Phase: PhaseRun, Expr: expr, Scope: scope, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Phase == "" {
		evalErr.Phase = PhaseRun
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Scope == "" {
		evalErr.Scope = scope
	}
	return err
}
