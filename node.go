package hierconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-hierconf/layering"
)

// Kind tags the payload a Node carries. A node is exactly one kind, so the
// leaf/container distinction can never be ambiguous.
type Kind uint8

const (
	// KindContainer nodes hold ordered children and no value.
	KindContainer Kind = iota
	// KindScalar nodes hold a string, int64, uint64, float64, bool, or nil.
	KindScalar
	// KindReference nodes hold a Reference to external content.
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Node is a vertex in a dot-addressed configuration tree.
type Node struct {
	// Path is the dot-delimited position from the tree root ("" for the root).
	Path string
	// Source labels where the node came from (file name, document label, ...).
	Source string
	// Priority is the index of the last merge input that contributed the node.
	Priority int
	// Metadata is a free-form side channel never used for addressing.
	Metadata map[string]any

	kind     Kind
	scalar   any
	ref      Reference
	list     bool
	keys     []string
	children map[string]*Node
}

// Match pairs a node with the path it was found at.
type Match struct {
	Path string
	Node *Node
}

// NewContainer returns an empty mapping container.
func NewContainer(path, source string) *Node {
	return &Node{Path: path, Source: source, kind: KindContainer}
}

// NewList returns an empty container flagged as originating from a sequence.
// Children are addressed by their stringified index.
func NewList(path, source string) *Node {
	return &Node{Path: path, Source: source, kind: KindContainer, list: true}
}

// NewScalar returns a leaf holding value. Numeric values are normalized to
// int64, uint64 or float64.
func NewScalar(path string, value any, source string) *Node {
	return &Node{Path: path, Source: source, kind: KindScalar, scalar: normalizeScalar(value)}
}

// NewReferenceNode returns a leaf holding ref.
func NewReferenceNode(path string, ref Reference, source string) *Node {
	return &Node{Path: path, Source: source, kind: KindReference, ref: ref.Clone()}
}

// Kind reports the payload kind.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindContainer
	}
	return n.kind
}

// IsLeaf reports whether n holds a value (scalar or reference).
func (n *Node) IsLeaf() bool {
	return n != nil && n.kind != KindContainer
}

// IsContainer reports whether n holds children rather than a value.
func (n *Node) IsContainer() bool {
	return n != nil && n.kind == KindContainer
}

// IsReference reports whether n holds a Reference.
func (n *Node) IsReference() bool {
	return n != nil && n.kind == KindReference
}

// IsList reports whether n is a container built from a sequence.
func (n *Node) IsList() bool {
	return n.IsContainer() && n.list
}

// Value returns the leaf payload: the scalar, or the Reference for reference
// leaves. Containers report false.
func (n *Node) Value() (any, bool) {
	switch n.Kind() {
	case KindScalar:
		return n.scalar, true
	case KindReference:
		return n.ref.Clone(), true
	default:
		return nil, false
	}
}

// Reference returns the Reference held by a reference leaf.
func (n *Node) Reference() (Reference, bool) {
	if !n.IsReference() {
		return Reference{}, false
	}
	return n.ref.Clone(), true
}

// Len returns the number of children.
func (n *Node) Len() int {
	if !n.IsContainer() {
		return 0
	}
	return len(n.keys)
}

// Keys returns child keys in insertion order.
func (n *Node) Keys() []string {
	if n.Len() == 0 {
		return nil
	}
	return append([]string(nil), n.keys...)
}

// Child returns the immediate child stored under key.
func (n *Node) Child(key string) (*Node, bool) {
	if !n.IsContainer() || n.children == nil {
		return nil, false
	}
	child, ok := n.children[key]
	return child, ok
}

// SetChild stores child under key, keeping the original position when the
// key already exists. A leaf receiving a child becomes a container and loses
// its value.
func (n *Node) SetChild(key string, child *Node) {
	if n.kind != KindContainer {
		n.becomeContainer(false)
	}
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	if _, exists := n.children[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
}

// Append adds child to a list container under the next index key.
func (n *Node) Append(child *Node) {
	n.SetChild(strconv.Itoa(n.Len()), child)
}

// SetValue turns n into a scalar leaf, dropping any children.
func (n *Node) SetValue(value any) {
	n.clearChildren()
	n.kind = KindScalar
	n.scalar = normalizeScalar(value)
	n.ref = Reference{}
}

// SetReference turns n into a reference leaf, dropping any children.
func (n *Node) SetReference(ref Reference) {
	n.clearChildren()
	n.kind = KindReference
	n.scalar = nil
	n.ref = ref.Clone()
}

func (n *Node) becomeContainer(list bool) {
	n.kind = KindContainer
	n.scalar = nil
	n.ref = Reference{}
	n.list = list
	n.keys = nil
	n.children = nil
}

func (n *Node) clearChildren() {
	n.keys = nil
	n.children = nil
	n.list = false
}

// NodeAt walks path one segment at a time. An empty path returns n itself;
// any missing segment reports false.
func (n *Node) NodeAt(path string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	if path == "" {
		return n, true
	}
	current := n
	for _, segment := range splitPath(path) {
		child, ok := current.Child(segment)
		if !ok {
			return nil, false
		}
		current = child
	}
	return current, true
}

// ValueAt returns the leaf payload at path. Missing paths and containers
// report false.
func (n *Node) ValueAt(path string) (any, bool) {
	node, ok := n.NodeAt(path)
	if !ok {
		return nil, false
	}
	return node.Value()
}

// FindAll returns every node matching pattern, where "*" matches any single
// segment. Matching stops once the pattern is consumed, so container matches
// are returned whole rather than descended.
func (n *Node) FindAll(pattern string) []Match {
	if n == nil {
		return nil
	}
	var results []Match
	n.findRecursive(splitPath(pattern), nil, &results)
	return results
}

func (n *Node) findRecursive(pattern []string, current []string, results *[]Match) {
	if len(pattern) == 0 {
		*results = append(*results, Match{Path: strings.Join(current, "."), Node: n})
		return
	}
	head, rest := pattern[0], pattern[1:]
	if head == "*" {
		for _, key := range n.Keys() {
			child := n.children[key]
			child.findRecursive(rest, appendSegment(current, key), results)
		}
		return
	}
	if child, ok := n.Child(head); ok {
		child.findRecursive(rest, appendSegment(current, head), results)
	}
}

func appendSegment(current []string, key string) []string {
	out := make([]string, len(current), len(current)+1)
	copy(out, current)
	return append(out, key)
}

// ToPlainValue converts the tree into nested map[string]any / []any / scalar
// values. Reference leaves become {"_ref": uri, "_type": "reference"}. Lists
// are emitted as slices while their keys are still the contiguous indexes
// they were loaded with.
func (n *Node) ToPlainValue() any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindScalar:
		return n.scalar
	case KindReference:
		return ReferenceMarker(n.ref)
	}
	if n.list && n.hasIndexKeys() {
		out := make([]any, len(n.keys))
		for i, key := range n.keys {
			out[i] = n.children[key].ToPlainValue()
		}
		return out
	}
	out := make(map[string]any, len(n.keys))
	for _, key := range n.keys {
		out[key] = n.children[key].ToPlainValue()
	}
	return out
}

// ReferenceMarker is the plain-value stand-in for a Reference leaf.
func ReferenceMarker(ref Reference) map[string]any {
	return map[string]any{
		"_ref":  ref.URI,
		"_type": "reference",
	}
}

// AsReferenceMarker reports whether value is a marker produced by
// ReferenceMarker and returns the URI it carries.
func AsReferenceMarker(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 2 || m["_type"] != "reference" {
		return "", false
	}
	uri, ok := m["_ref"].(string)
	return uri, ok
}

func (n *Node) hasIndexKeys() bool {
	for i, key := range n.keys {
		if key != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// Clone deep copies the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Path:     n.Path,
		Source:   n.Source,
		Priority: n.Priority,
		Metadata: layering.CloneMap(n.Metadata),
		kind:     n.kind,
		scalar:   n.scalar,
		ref:      n.ref.Clone(),
		list:     n.list,
	}
	if len(n.keys) > 0 {
		out.keys = append([]string(nil), n.keys...)
		out.children = make(map[string]*Node, len(n.children))
		for key, child := range n.children {
			out.children[key] = child.Clone()
		}
	}
	return out
}

// Walk visits n and every descendant depth-first in key order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || fn == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, key := range n.keys {
		n.children[key].Walk(fn)
	}
}

func (n *Node) stampPriority(priority int) {
	n.Walk(func(node *Node) bool {
		node.Priority = priority
		return true
	})
}

func (n *Node) String() string {
	if n == nil {
		return "Node(<nil>)"
	}
	switch n.kind {
	case KindScalar:
		return fmt.Sprintf("Node(path=%q, value=%v)", n.Path, n.scalar)
	case KindReference:
		return fmt.Sprintf("Node(path=%q, ref=%s)", n.Path, n.ref.URI)
	default:
		return fmt.Sprintf("Node(path=%q, children=%d)", n.Path, len(n.keys))
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// normalizeScalar folds the numeric types produced by decoders and callers
// into int64, uint64 (only above MaxInt64) and float64.
func normalizeScalar(value any) any {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint:
		return normalizeUnsigned(uint64(typed))
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		return normalizeUnsigned(typed)
	case float32:
		return float64(typed)
	default:
		return value
	}
}

func normalizeUnsigned(v uint64) any {
	if v <= 1<<63-1 {
		return int64(v)
	}
	return v
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func parseIndex(segment string, length int) (int, bool) {
	index, err := strconv.Atoi(segment)
	if err != nil || index < 0 || index >= length {
		return 0, false
	}
	return index, true
}
