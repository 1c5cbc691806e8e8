package hierconf

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-hierconf/pkg/activity"
	"github.com/google/uuid"
)

// Manager loads configuration documents, merges them by load order and
// answers queries against the merged tree. Every load invalidates the merged
// tree; queries fail with ErrNotMerged until Merge is called again.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	cfg      managerConfig
	loader   *Loader
	merger   *Merger
	resolver *Resolver
	emitter  *activity.Emitter

	layers []loadedLayer
	merged *Node
	report *MergeReport
}

type loadedLayer struct {
	tree       *Node
	scope      Scope
	snapshotID string
}

// NewManager constructs an empty Manager.
func NewManager(opts ...Option) *Manager {
	cfg := applyOptions(opts)
	return &Manager{
		cfg:      cfg,
		loader:   NewLoader(WithLoaderBaseDir(cfg.baseDir)),
		merger:   NewMerger(cfg.mergerOptions()...),
		resolver: NewResolver(cfg.resolverOptions()...),
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activityConfig()),
	}
}

// LoadFile parses the YAML file at path and appends it as the strongest
// layer so far. source defaults to path.
func (m *Manager) LoadFile(path, source string) error {
	tree, err := m.loader.LoadFile(path, source)
	if err != nil {
		return err
	}
	m.appendLayer(tree, Scope{}, "")
	return nil
}

// LoadDocument parses data and appends it as the strongest layer so far.
func (m *Manager) LoadDocument(data []byte, source string) error {
	tree, err := m.loader.Load(data, source)
	if err != nil {
		return err
	}
	m.appendLayer(tree, Scope{}, "")
	return nil
}

// AddTree appends a copy of an already built tree.
func (m *Manager) AddTree(tree *Node) error {
	if tree == nil {
		return fmt.Errorf("%w: tree is nil", ErrUsage)
	}
	m.appendLayer(tree.Clone(), Scope{}, "")
	return nil
}

// AddRuntimeOverrides appends a layer built from flat dot paths, for example
// {"llm.temperature": 0.2}. The layer is labelled "runtime_overrides".
func (m *Manager) AddRuntimeOverrides(overrides map[string]any) error {
	tree, err := m.merger.MergeWithPathOverrides(NewContainer("", RuntimeOverridesSource), overrides)
	if err != nil {
		return err
	}
	index := m.appendLayerQuiet(tree, Scope{}, "")
	paths := make([]string, 0, len(overrides))
	for path := range overrides {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	m.emit(activity.BuildOverridesAppliedEvent(activity.ConfigEventInput{
		Metadata: map[string]any{"paths": paths},
		Layer:    layerContext(m.layers[index], index),
	}))
	return nil
}

func (m *Manager) appendLayer(tree *Node, scope Scope, snapshotID string) {
	index := m.appendLayerQuiet(tree, scope, snapshotID)
	m.emit(activity.BuildLayerLoadedEvent(activity.ConfigEventInput{
		Layer: layerContext(m.layers[index], index),
	}))
}

func (m *Manager) appendLayerQuiet(tree *Node, scope Scope, snapshotID string) int {
	if snapshotID == "" {
		snapshotID = uuid.NewString()
	}
	m.layers = append(m.layers, loadedLayer{tree: tree, scope: scope.clone(), snapshotID: snapshotID})
	m.merged = nil
	m.report = nil
	return len(m.layers) - 1
}

// Merge rebuilds the merged tree from every loaded layer.
func (m *Manager) Merge() error {
	if len(m.layers) == 0 {
		return ErrNothingToMerge
	}
	trees := make([]*Node, len(m.layers))
	for i, layer := range m.layers {
		trees[i] = layer.tree
	}
	merged, report, err := m.merger.MergeWithReport(trees...)
	if err != nil {
		return err
	}
	m.merged = merged
	m.report = report
	m.emit(activity.BuildMergedEvent(activity.ConfigEventInput{
		Metadata: map[string]any{
			"layers":     len(trees),
			"strategy":   string(m.merger.Strategy()),
			"conflicts":  len(report.Conflicts),
			"references": len(report.References),
		},
	}))
	return nil
}

func (m *Manager) mergedTree() (*Node, error) {
	if m.merged == nil {
		return nil, ErrNotMerged
	}
	return m.merged, nil
}

// Value returns the leaf value at path. Reference leaves yield their
// Reference; containers and missing paths report false.
func (m *Manager) Value(path string) (any, bool, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return nil, false, err
	}
	value, ok := tree.ValueAt(path)
	return value, ok, nil
}

// Reference returns the Reference stored at path, if any.
func (m *Manager) Reference(path string) (Reference, bool, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return Reference{}, false, err
	}
	node, ok := tree.NodeAt(path)
	if !ok {
		return Reference{}, false, nil
	}
	ref, ok := node.Reference()
	return ref, ok, nil
}

// Content returns the text at path: references are resolved against the
// merged tree, strings are returned as is and other scalars are formatted.
// Containers, nil values and missing paths report false.
func (m *Manager) Content(ctx context.Context, path string) (string, bool, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return "", false, err
	}
	node, ok := tree.NodeAt(path)
	if !ok {
		return "", false, nil
	}
	if ref, ok := node.Reference(); ok {
		content, err := m.resolver.Resolve(ctx, ref, tree)
		if err != nil {
			return "", false, err
		}
		m.emit(activity.BuildContentResolvedEvent(activity.ConfigEventInput{
			Path: path,
			URI:  ref.URI,
			Layer: activity.LayerContext{
				Source: node.Source,
				Index:  node.Priority,
			},
		}))
		return content, true, nil
	}
	value, ok := node.Value()
	if !ok || value == nil {
		return "", false, nil
	}
	return formatScalar(value), true, nil
}

func formatScalar(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(typed)
	}
}

// Node returns a copy of the merged node at path.
func (m *Manager) Node(path string) (*Node, bool, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return nil, false, err
	}
	node, ok := tree.NodeAt(path)
	if !ok {
		return nil, false, nil
	}
	return node.Clone(), true, nil
}

// FindAll returns copies of every merged node matching pattern, where "*"
// matches one path segment.
func (m *Manager) FindAll(pattern string) ([]Match, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return nil, err
	}
	matches := tree.FindAll(pattern)
	for i := range matches {
		matches[i].Node = matches[i].Node.Clone()
	}
	return matches, nil
}

// ToPlainValue converts the merged tree to nested maps, slices and scalars.
func (m *Manager) ToPlainValue() (any, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return nil, err
	}
	return tree.ToPlainValue(), nil
}

// RegisterResolver installs fn for a custom scheme token on the owned
// resolver.
func (m *Manager) RegisterResolver(scheme string, fn SchemeResolver) {
	m.resolver.RegisterResolver(scheme, fn)
}

// ClearCache drops every resolved content entry.
func (m *Manager) ClearCache() {
	m.resolver.ClearCache()
}

// Resolver exposes the resolver used by Content.
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

// Strategy returns the merge strategy in use.
func (m *Manager) Strategy() Strategy {
	return m.merger.Strategy()
}

// Trees returns copies of the loaded trees, weakest first.
func (m *Manager) Trees() []*Node {
	if len(m.layers) == 0 {
		return nil
	}
	out := make([]*Node, len(m.layers))
	for i, layer := range m.layers {
		out[i] = layer.tree.Clone()
	}
	return out
}

// Merged returns a copy of the merged tree, or false when the manager needs
// a Merge call.
func (m *Manager) Merged() (*Node, bool) {
	if m.merged == nil {
		return nil, false
	}
	return m.merged.Clone(), true
}

// MergeReport returns the report recorded by the last Merge, or nil.
func (m *Manager) MergeReport() *MergeReport {
	if m.report == nil {
		return nil
	}
	out := *m.report
	out.Conflicts = append([]Conflict(nil), m.report.Conflicts...)
	out.References = append([]ReferenceUsage(nil), m.report.References...)
	return &out
}
