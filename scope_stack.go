package hierconf

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-hierconf/layering"
)

// Scope names one precedence level of a Stack, such as a tenant or a user.
// A higher Priority beats a lower one.
type Scope struct {
	Name     string
	Label    string
	Priority int
	Metadata map[string]any
}

type ScopeOption func(*Scope)

func WithScopeLabel(label string) ScopeOption {
	return func(s *Scope) {
		s.Label = label
	}
}

// WithScopeMetadata attaches identifiers such as tenant_id. The map is copied.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(s *Scope) {
		if len(metadata) > 0 {
			s.Metadata = copyMetadata(metadata)
		}
	}
}

// NewScope builds a Scope. Names and priorities are checked when the scope
// joins a Stack.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	scope := Scope{Name: name, Priority: priority}
	for _, opt := range opts {
		if opt != nil {
			opt(&scope)
		}
	}
	return scope.clone()
}

func (s Scope) String() string {
	return fmt.Sprintf("%s(%d)", s.Name, s.Priority)
}

func (s Scope) clone() Scope {
	s.Metadata = copyMetadata(s.Metadata)
	return s
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

// Layer is one scope's configuration document. SnapshotID identifies the
// stored revision it came from, when there is one.
type Layer struct {
	Scope      Scope
	Tree       *Node
	SnapshotID string
}

type LayerOption func(*Layer)

// WithSnapshotID records the stored revision a layer was read from. It shows
// up in traces and activity events.
func WithSnapshotID(id string) LayerOption {
	return func(layer *Layer) {
		layer.SnapshotID = id
	}
}

// NewLayer copies scope and tree into a Layer.
func NewLayer(scope Scope, tree *Node, opts ...LayerOption) Layer {
	layer := Layer{Scope: scope, Tree: tree}
	for _, opt := range opts {
		if opt != nil {
			opt(&layer)
		}
	}
	return layer.clone()
}

// LoadLayer parses a YAML document into a Layer whose source is the scope
// name.
func LoadLayer(scope Scope, data []byte, opts ...LayerOption) (Layer, error) {
	tree, err := NewLoader().Load(data, scope.Name)
	if err != nil {
		return Layer{}, err
	}
	return NewLayer(scope, tree, opts...), nil
}

func (l Layer) clone() Layer {
	l.Scope = l.Scope.clone()
	l.Tree = l.Tree.Clone()
	return l
}

var (
	ErrScopeNameRequired  = errors.New("hierconf: scope name is required")
	ErrDuplicateScopeName = errors.New("hierconf: scope name used twice")
	ErrPriorityOrder      = errors.New("hierconf: scopes share a priority")
	ErrLayerTreeRequired  = errors.New("hierconf: layer has no tree")
)

// Stack is a validated set of layers, strongest first. It is never modified
// after NewStack returns.
type Stack struct {
	layers []Layer
}

// NewStack copies layers and orders them by descending priority. Every layer
// needs a tree and a unique scope name, and no two layers may share a
// priority.
func NewStack(layers ...Layer) (*Stack, error) {
	ordered := make([]Layer, 0, len(layers))
	names := make(map[string]bool, len(layers))
	for _, layer := range layers {
		switch {
		case layer.Scope.Name == "":
			return nil, ErrScopeNameRequired
		case names[layer.Scope.Name]:
			return nil, fmt.Errorf("%w: %q", ErrDuplicateScopeName, layer.Scope.Name)
		case layer.Tree == nil:
			return nil, fmt.Errorf("%w: %q", ErrLayerTreeRequired, layer.Scope.Name)
		}
		names[layer.Scope.Name] = true
		ordered = append(ordered, layer.clone())
	}

	slices.SortFunc(ordered, func(a, b Layer) int {
		if byPriority := cmp.Compare(b.Scope.Priority, a.Scope.Priority); byPriority != 0 {
			return byPriority
		}
		return cmp.Compare(a.Scope.Name, b.Scope.Name)
	})
	for i := 1; i < len(ordered); i++ {
		prev, next := ordered[i-1].Scope, ordered[i].Scope
		if prev.Priority == next.Priority {
			return nil, fmt.Errorf("%w: %s and %s", ErrPriorityOrder, prev, next)
		}
	}
	return &Stack{layers: ordered}, nil
}

// Layers returns copies of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s.Len() == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i, layer := range s.layers {
		out[i] = layer.clone()
	}
	return out
}

func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge builds a Manager with opts, adds the layers weakest first and merges
// them, so the strongest scope wins every conflict.
func (s *Stack) Merge(opts ...Option) (*Manager, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: stack has no layers", ErrUsage)
	}
	manager := NewManager(opts...)
	for i := len(s.layers) - 1; i >= 0; i-- {
		if err := manager.AddLayer(s.layers[i]); err != nil {
			return nil, err
		}
	}
	if err := manager.Merge(); err != nil {
		return nil, err
	}
	return manager, nil
}

// AddLayer appends a copy of layer's tree. Its scope and snapshot ID are kept
// for traces, schemas and activity events.
func (m *Manager) AddLayer(layer Layer) error {
	if layer.Tree == nil {
		return fmt.Errorf("%w: %q", ErrLayerTreeRequired, layer.Scope.Name)
	}
	m.appendLayer(layer.Tree.Clone(), layer.Scope, layer.SnapshotID)
	return nil
}

func copyMetadata(origin map[string]any) map[string]any {
	return layering.CloneMap(origin)
}
