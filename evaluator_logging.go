package hierconf

import (
	"errors"
	"time"
)

// EvaluatorLogEvent is reported once per Manager.Evaluate call.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Started  time.Time
	Duration time.Duration
	// Phase is PhaseCompile or PhaseRun when Err is set.
	Phase string
	Err   error
}

type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// evaluatorLoggers notifies every logger in order.
type evaluatorLoggers []EvaluatorLogger

func (l evaluatorLoggers) LogEvaluation(event EvaluatorLogEvent) {
	for _, logger := range l {
		logger.LogEvaluation(event)
	}
}

// WithEvaluatorLogger adds logger to the loggers told about every
// evaluation. A nil logger removes the ones added so far.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *managerConfig) {
		if logger == nil {
			cfg.evaluatorLoggers = nil
			return
		}
		cfg.evaluatorLoggers = append(cfg.evaluatorLoggers, logger)
	}
}

// timeEvaluation runs evaluate, annotates its error and reports the outcome
// to logger.
func timeEvaluation(logger EvaluatorLogger, engine, expr, scope string, evaluate func() (any, error)) (any, error) {
	started := time.Now()
	value, err := evaluate()
	event := EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Scope:    scope,
		Started:  started,
		Duration: time.Since(started),
		Err:      annotateEvaluationError(engine, expr, scope, err),
	}
	var evalErr *EvaluationError
	if errors.As(event.Err, &evalErr) {
		event.Phase = evalErr.Phase
	}
	logger.LogEvaluation(event)
	return value, event.Err
}
