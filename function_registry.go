package hierconf

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrFunctionNotFound is returned when a rule calls a name nobody registered.
var ErrFunctionNotFound = errors.New("hierconf: function not registered")

// Function is a custom rule helper. Arguments arrive as the engine's plain Go
// values.
type Function func(args ...any) (any, error)

// FunctionRegistry holds custom rule helpers. Names are matched without
// regard to case but keep the spelling they were registered with.
type FunctionRegistry struct {
	mu      sync.RWMutex
	entries map[string]registeredFunction
}

type registeredFunction struct {
	name string
	fn   Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{entries: map[string]registeredFunction{}}
}

// Register adds fn under name. Names must be identifiers, must not be taken
// (in any case) and must not shadow the built-in get and call helpers.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if !validFunctionName(name) {
		return fmt.Errorf("%w: invalid function name %q", ErrUsage, name)
	}
	if reservedFunctionName(name) {
		return fmt.Errorf("%w: function name %q is reserved", ErrUsage, name)
	}
	if fn == nil {
		return fmt.Errorf("%w: function %q is nil", ErrUsage, name)
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: function %q already registered as %q", ErrUsage, name, existing.name)
	}
	if r.entries == nil {
		r.entries = map[string]registeredFunction{}
	}
	r.entries[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Clone copies the registrations; later Register calls on either side are
// not shared.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{entries: make(map[string]registeredFunction, len(r.entries))}
	for key, entry := range r.entries {
		out.entries[key] = entry
	}
	return out
}

// Call runs the function registered under name. A panic inside the function
// is returned as an error.
func (r *FunctionRegistry) Call(name string, args ...any) (result any, err error) {
	entry, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result, err = nil, fmt.Errorf("hierconf: function %q panicked: %v", entry.name, recovered)
		}
	}()
	result, err = entry.fn(args...)
	if err != nil {
		return nil, fmt.Errorf("hierconf: function %q: %w", entry.name, err)
	}
	return result, nil
}

func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Names returns the registered spellings sorted case-insensitively.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = r.entries[key].name
	}
	return names
}

func (r *FunctionRegistry) lookup(name string) (registeredFunction, bool) {
	if r == nil {
		return registeredFunction{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.ToLower(name)]
	return entry, ok
}

func validFunctionName(name string) bool {
	if name == "" {
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

func reservedFunctionName(name string) bool {
	switch strings.ToLower(name) {
	case "get", "call":
		return true
	}
	return false
}

// WithFunctionRegistry exposes a copy of registry to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *managerConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers fn under name on the Manager's registry.
// Invalid or duplicate names are ignored; use a FunctionRegistry to see the
// error.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *managerConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
