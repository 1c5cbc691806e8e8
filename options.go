package hierconf

import (
	"net/http"
	"time"

	"github.com/goliatone/go-hierconf/pkg/activity"
)

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	baseDir          string
	strategy         Strategy
	httpClient       *http.Client
	contentCache     ContentCache
	resolutionLogger ResolutionLogger
	mergeLogger      MergeLogger
	schemes          map[string]SchemeResolver
	evaluator        Evaluator
	programCache     ProgramCache
	functions        *FunctionRegistry
	evaluatorLoggers evaluatorLoggers
	schemaGenerator  SchemaGenerator
	scope            Scope
	scopeSchema      bool
	activityHooks    activity.Hooks
	activityChannel  string
	activityIdentity activity.Identity
	activityVerbs    []string
	activityClock    func() time.Time
}

func applyOptions(opts []Option) managerConfig {
	cfg := managerConfig{strategy: StrategyOverride}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg managerConfig) resolverOptions() []ResolverOption {
	out := []ResolverOption{
		ResolverWithBaseDir(cfg.baseDir),
		ResolverWithHTTPClient(cfg.httpClient),
		ResolverWithContentCache(cfg.contentCache),
	}
	if cfg.resolutionLogger != nil {
		out = append(out, ResolverWithLogger(cfg.resolutionLogger))
	}
	for scheme, fn := range cfg.schemes {
		out = append(out, ResolverWithScheme(scheme, fn))
	}
	return out
}

func (cfg managerConfig) mergerOptions() []MergerOption {
	out := []MergerOption{MergerWithStrategy(cfg.strategy)}
	if cfg.mergeLogger != nil {
		out = append(out, MergerWithLogger(cfg.mergeLogger))
	}
	return out
}

func (cfg managerConfig) activityConfig() activity.Config {
	return activity.Config{
		Enabled:  true,
		Channel:  cfg.activityChannel,
		Identity: cfg.activityIdentity,
		Verbs:    cfg.activityVerbs,
		Clock:    cfg.activityClock,
	}
}

func (cfg managerConfig) evaluatorLog() EvaluatorLogger {
	return cfg.evaluatorLoggers
}

// WithBaseDir resolves relative document paths and file references against
// dir.
func WithBaseDir(dir string) Option {
	return func(cfg *managerConfig) {
		cfg.baseDir = dir
	}
}

// WithStrategy selects the merge conflict strategy.
func WithStrategy(strategy Strategy) Option {
	return func(cfg *managerConfig) {
		if strategy != "" {
			cfg.strategy = strategy
		}
	}
}

// WithHTTPClient sets the client used for http and https references.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *managerConfig) {
		cfg.httpClient = client
	}
}

// WithContentCache replaces the resolver's in-memory content cache.
func WithContentCache(cache ContentCache) Option {
	return func(cfg *managerConfig) {
		cfg.contentCache = cache
	}
}

// WithResolutionLogger attaches a logger receiving one event per resolution.
func WithResolutionLogger(logger ResolutionLogger) Option {
	return func(cfg *managerConfig) {
		cfg.resolutionLogger = logger
	}
}

// WithMergeLogger attaches a logger receiving one event per merge.
func WithMergeLogger(logger MergeLogger) Option {
	return func(cfg *managerConfig) {
		cfg.mergeLogger = logger
	}
}

// WithSchemeResolver registers fn for a custom scheme token.
func WithSchemeResolver(scheme string, fn SchemeResolver) Option {
	return func(cfg *managerConfig) {
		if cfg.schemes == nil {
			cfg.schemes = map[string]SchemeResolver{}
		}
		cfg.schemes[scheme] = fn
	}
}

// WithEvaluator configures the rule evaluator. Defaults to the expr engine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *managerConfig) {
		cfg.evaluator = e
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *managerConfig) {
		cfg.schemaGenerator = generator
	}
}

// WithScope configures the default scope metadata applied to evaluator contexts.
func WithScope(scope Scope) Option {
	return func(cfg *managerConfig) {
		cfg.scope = scope.clone()
	}
}

// WithScopeSchema toggles inclusion of layer scopes within generated schemas.
func WithScopeSchema(include bool) Option {
	return func(cfg *managerConfig) {
		cfg.scopeSchema = include
	}
}
