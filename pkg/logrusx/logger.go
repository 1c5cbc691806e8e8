// Package logrusx routes hierconf resolution, merge and evaluation events to
// a logrus logger.
package logrusx

import (
	hierconf "github.com/goliatone/go-hierconf"
	"github.com/sirupsen/logrus"
)

// Logger implements hierconf.ResolutionLogger, hierconf.MergeLogger and
// hierconf.EvaluatorLogger. Successful events are logged at Debug, failures
// at Warn.
type Logger struct {
	entry logrus.FieldLogger
}

// New wraps logger. A nil logger uses logrus.StandardLogger().
func New(logger logrus.FieldLogger) *Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Logger{entry: logger.WithField("component", "hierconf")}
}

// Options wires the logger into every hook a Manager exposes.
func (l *Logger) Options() []hierconf.Option {
	return []hierconf.Option{
		hierconf.WithResolutionLogger(l),
		hierconf.WithMergeLogger(l),
		hierconf.WithEvaluatorLogger(l),
	}
}

func (l *Logger) LogResolution(event hierconf.ResolutionLogEvent) {
	entry := l.entry.WithFields(logrus.Fields{
		"uri":         event.URI,
		"scheme":      event.Scheme.String(),
		"cached":      event.Cached,
		"duration_ms": event.Duration.Milliseconds(),
	})
	if event.Err != nil {
		entry.WithError(event.Err).Warn("reference resolution failed")
		return
	}
	entry.Debug("reference resolved")
}

func (l *Logger) LogMerge(event hierconf.MergeLogEvent) {
	entry := l.entry.WithFields(logrus.Fields{
		"strategy":    string(event.Strategy),
		"inputs":      event.Inputs,
		"conflicts":   event.Conflicts,
		"duration_ms": event.Duration.Milliseconds(),
	})
	if event.Err != nil {
		entry.WithError(event.Err).Warn("merge failed")
		return
	}
	entry.Debug("configuration merged")
}

func (l *Logger) LogEvaluation(event hierconf.EvaluatorLogEvent) {
	entry := l.entry.WithFields(logrus.Fields{
		"engine":      event.Engine,
		"expr":        event.Expr,
		"scope":       event.Scope,
		"duration_ms": event.Duration.Milliseconds(),
	})
	if event.Err != nil {
		entry.WithError(event.Err).WithField("phase", event.Phase).Warn("rule evaluation failed")
		return
	}
	entry.Debug("rule evaluated")
}
