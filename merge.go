package hierconf

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-hierconf/layering"
)

// Strategy selects how leaf conflicts are settled when trees are merged.
type Strategy string

const (
	// StrategyOverride lets the later tree win every conflict.
	StrategyOverride Strategy = "override"
	// StrategyPreserve keeps the value loaded first.
	StrategyPreserve Strategy = "preserve"
	// StrategyURIPriority behaves like StrategyOverride except that a
	// Reference is never replaced by a plain value.
	StrategyURIPriority Strategy = "uri_priority"
)

// RuntimeOverridesSource labels nodes synthesized from flat override maps.
const RuntimeOverridesSource = "runtime_overrides"

func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy accepts the strategy names case-insensitively.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyOverride, "":
		return StrategyOverride, nil
	case StrategyPreserve:
		return StrategyPreserve, nil
	case StrategyURIPriority:
		return StrategyURIPriority, nil
	}
	return "", fmt.Errorf("%w: unknown merge strategy %q", ErrUsage, value)
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// MergerWithStrategy selects the conflict strategy. Defaults to
// StrategyOverride.
func MergerWithStrategy(strategy Strategy) MergerOption {
	return func(m *Merger) {
		if strategy != "" {
			m.strategy = strategy
		}
	}
}

// MergerWithLogger attaches a logger receiving one event per merge.
func MergerWithLogger(logger MergeLogger) MergerOption {
	return func(m *Merger) {
		if logger == nil {
			m.logger = noopMergeLogger{}
			return
		}
		m.logger = logger
	}
}

// Merger folds ordered trees into one. Inputs are never mutated.
type Merger struct {
	strategy Strategy
	logger   MergeLogger
}

// NewMerger constructs a Merger using StrategyOverride unless configured
// otherwise.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{strategy: StrategyOverride, logger: noopMergeLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Strategy returns the active conflict strategy.
func (m *Merger) Strategy() Strategy {
	return m.strategy
}

// Merge combines trees where trees[0] is the weakest input and the last
// element the strongest. A single tree is returned as a deep copy.
func (m *Merger) Merge(trees ...*Node) (*Node, error) {
	merged, _, err := m.merge(trees, nil)
	return merged, err
}

// MergeWithReport behaves like Merge and also records the conflicts settled
// in each round and the references present in the result.
func (m *Merger) MergeWithReport(trees ...*Node) (*Node, *MergeReport, error) {
	report := &MergeReport{Strategy: m.strategy}
	merged, report, err := m.merge(trees, report)
	if err != nil {
		return nil, nil, err
	}
	return merged, report, nil
}

func (m *Merger) merge(trees []*Node, report *MergeReport) (*Node, *MergeReport, error) {
	start := time.Now()
	if len(trees) == 0 {
		m.logger.LogMerge(MergeLogEvent{Strategy: m.strategy, Err: ErrEmptyMerge})
		return nil, nil, ErrEmptyMerge
	}
	for i, tree := range trees {
		if tree == nil {
			err := fmt.Errorf("%w: merge input %d is nil", ErrUsage, i)
			m.logger.LogMerge(MergeLogEvent{Strategy: m.strategy, Inputs: len(trees), Err: err})
			return nil, nil, err
		}
	}

	base := trees[0].Clone()
	if len(trees) > 1 {
		base.stampPriority(0)
		for round := 1; round < len(trees); round++ {
			m.combine(base, trees[round], round, report)
		}
		base.Path = ""
		base.Priority = 0
		base.Source = fmt.Sprintf("merged_from_%d_sources", len(trees))
	}

	conflicts := 0
	if report != nil {
		report.Inputs = len(trees)
		report.collectReferences(base)
		conflicts = len(report.Conflicts)
	}
	m.logger.LogMerge(MergeLogEvent{
		Strategy:  m.strategy,
		Inputs:    len(trees),
		Conflicts: conflicts,
		Duration:  time.Since(start),
	})
	return base, report, nil
}

// combine folds override into base in place. base is always a private copy.
func (m *Merger) combine(base, override *Node, round int, report *MergeReport) {
	if override.IsLeaf() {
		if override.kind == KindScalar && override.scalar == nil {
			return
		}
		switch m.strategy {
		case StrategyPreserve:
			report.conflict(base, override, round, ResolutionPreserved)
			return
		case StrategyURIPriority:
			if base.IsReference() && !override.IsReference() {
				report.conflict(base, override, round, ResolutionReferenceKept)
				return
			}
		}
		report.conflict(base, override, round, ResolutionOverridden)
		adopt(base, override, round)
		return
	}

	if override.Len() == 0 {
		return
	}
	if base.IsLeaf() {
		if m.strategy == StrategyPreserve {
			report.conflict(base, override, round, ResolutionPreserved)
			return
		}
		report.conflict(base, override, round, ResolutionOverridden)
		base.becomeContainer(override.list)
		base.Source = override.Source
	}
	base.Priority = round
	for _, key := range override.keys {
		child := override.children[key]
		if existing, ok := base.Child(key); ok {
			m.combine(existing, child, round, report)
			continue
		}
		clone := child.Clone()
		rebase(clone, joinPath(base.Path, key))
		clone.stampPriority(round)
		base.SetChild(key, clone)
	}
}

// adopt turns base into a copy of the leaf override, dropping any children.
func adopt(base, override *Node, round int) {
	base.clearChildren()
	base.kind = override.kind
	base.scalar = override.scalar
	base.ref = override.ref.Clone()
	base.Source = override.Source
	base.Priority = round
	base.Metadata = layering.CloneMap(override.Metadata)
}

// MergeWithPathOverrides returns a copy of base with each dot path set to its
// value. Paths are applied in sorted order; missing or leaf intermediates
// become containers and the target always becomes the given value, losing
// any children it had. A nil base starts from an empty container.
func (m *Merger) MergeWithPathOverrides(base *Node, overrides map[string]any) (*Node, error) {
	out := base.Clone()
	if out == nil {
		out = NewContainer("", RuntimeOverridesSource)
	}
	paths := make([]string, 0, len(overrides))
	for path := range overrides {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		segments, err := splitOverridePath(path)
		if err != nil {
			return nil, err
		}
		current := out
		for _, segment := range segments[:len(segments)-1] {
			child, ok := current.Child(segment)
			if !ok {
				child = NewContainer(joinPath(current.Path, segment), RuntimeOverridesSource)
				current.SetChild(segment, child)
			} else if child.IsLeaf() {
				child.becomeContainer(false)
				child.Source = RuntimeOverridesSource
			}
			current = child
		}
		last := segments[len(segments)-1]
		leaf, err := overrideNode(overrides[path], joinPath(current.Path, last))
		if err != nil {
			return nil, err
		}
		current.SetChild(last, leaf)
	}
	return out, nil
}

func splitOverridePath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty override path", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// overrideNode builds the node stored at an override path. Plain strings stay
// literal; nested maps and slices follow the loader's classification.
func overrideNode(value any, path string) (*Node, error) {
	switch typed := value.(type) {
	case Reference:
		return NewReferenceNode(path, typed, RuntimeOverridesSource), nil
	case *Node:
		if typed == nil {
			return NewScalar(path, nil, RuntimeOverridesSource), nil
		}
		clone := typed.Clone()
		rebase(clone, path)
		return clone, nil
	case []any, []string:
		return buildNode(typed, path, RuntimeOverridesSource)
	}
	if _, ok := mappingEntries(value); ok {
		return buildNode(value, path, RuntimeOverridesSource)
	}
	return NewScalar(path, value, RuntimeOverridesSource), nil
}

func sameLeaf(a, b *Node) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindScalar:
		return reflect.DeepEqual(a.scalar, b.scalar)
	case KindReference:
		return a.ref.URI == b.ref.URI && a.ref.ContentType == b.ref.ContentType
	}
	return false
}
