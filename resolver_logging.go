package hierconf

import "time"

// ResolutionLogEvent describes one Resolve call.
type ResolutionLogEvent struct {
	URI      string
	Scheme   Scheme
	Cached   bool
	Duration time.Duration
	Err      error
}

// ResolutionLogger records resolution events.
type ResolutionLogger interface {
	LogResolution(ResolutionLogEvent)
}

// ResolutionLoggerFunc adapts a function to ResolutionLogger.
type ResolutionLoggerFunc func(ResolutionLogEvent)

// LogResolution implements ResolutionLogger.
func (f ResolutionLoggerFunc) LogResolution(event ResolutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopResolutionLogger struct{}

func (noopResolutionLogger) LogResolution(ResolutionLogEvent) {}

// ResolverWithLogger attaches a resolution logger to the resolver.
func ResolverWithLogger(logger ResolutionLogger) ResolverOption {
	return func(r *Resolver) {
		if logger == nil {
			r.logger = noopResolutionLogger{}
			return
		}
		r.logger = logger
	}
}
