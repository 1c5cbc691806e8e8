package hierconf

import (
	"context"
	"fmt"

	"github.com/goliatone/go-hierconf/internal/hydrate"
)

// DecodeOption configures Decode and DecodeResolved.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	strict bool
	hooks  []func(path string, value any) (any, error)
}

// DecodeStrict rejects keys with no matching field in the target type.
func DecodeStrict() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.strict = true
	}
}

// DecodeWithHook rewrites the plain value before it is decoded.
func DecodeWithHook(hook func(path string, value any) (any, error)) DecodeOption {
	return func(cfg *decodeConfig) {
		if hook != nil {
			cfg.hooks = append(cfg.hooks, hook)
		}
	}
}

// Decode converts the merged subtree at path into T using yaml struct tags.
// Reference leaves decode as their URI. An empty path decodes the whole tree.
// When *T has a Validate() error method it runs on the decoded value.
func Decode[T any](m *Manager, path string, opts ...DecodeOption) (T, error) {
	var zero T
	node, err := m.decodeTarget(path)
	if err != nil {
		return zero, err
	}
	return decodeNode[T](path, node, decodeValue(node, nil), opts)
}

// DecodeResolved is Decode with every reference leaf replaced by its
// resolved content.
func DecodeResolved[T any](ctx context.Context, m *Manager, path string, opts ...DecodeOption) (T, error) {
	var zero T
	node, err := m.decodeTarget(path)
	if err != nil {
		return zero, err
	}
	var resolveErr error
	value := decodeValue(node, func(ref Reference) any {
		if resolveErr != nil {
			return nil
		}
		content, err := m.resolver.Resolve(ctx, ref, m.merged)
		if err != nil {
			resolveErr = err
			return nil
		}
		return content
	})
	if resolveErr != nil {
		return zero, resolveErr
	}
	return decodeNode[T](path, node, value, opts)
}

func (m *Manager) decodeTarget(path string) (*Node, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return nil, err
	}
	node, ok := tree.NodeAt(path)
	if !ok {
		return nil, fmt.Errorf("%w: no configuration at %q", ErrNotFound, path)
	}
	return node, nil
}

func decodeNode[T any](path string, node *Node, value any, opts []DecodeOption) (T, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	hydrateOpts := hydrate.Options{Strict: cfg.strict}
	for _, hook := range cfg.hooks {
		hook := hook
		hydrateOpts.Hooks = append(hydrateOpts.Hooks, func(target hydrate.Target, payload any) (any, error) {
			return hook(target.Path, payload)
		})
	}
	return hydrate.Into[T](hydrate.Target{Path: path, Source: node.Source}, value, hydrateOpts)
}

// decodeValue mirrors ToPlainValue but renders references through render,
// or as their URI when render is nil.
func decodeValue(node *Node, render func(Reference) any) any {
	switch node.Kind() {
	case KindScalar:
		return node.scalar
	case KindReference:
		if render == nil {
			return node.ref.URI
		}
		return render(node.ref)
	}
	if node.list && node.hasIndexKeys() {
		out := make([]any, len(node.keys))
		for i, key := range node.keys {
			out[i] = decodeValue(node.children[key], render)
		}
		return out
	}
	out := make(map[string]any, len(node.keys))
	for _, key := range node.keys {
		out[key] = decodeValue(node.children[key], render)
	}
	return out
}
