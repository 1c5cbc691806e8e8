package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"

	hierconf "github.com/goliatone/go-hierconf"
)

type schemaNode struct {
	Type       string
	Format     string
	Nullable   bool
	Properties map[string]*schemaNode
	Items      *schemaNode
	Default    any
	extensions map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Nullable {
		result["nullable"] = true
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedKeys(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}

	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}

	n.writeExtensions(result)
	return result
}

func (n *schemaNode) writeExtensions(result map[string]any) {
	keys := make([]string, 0, len(n.extensions))
	for key := range n.extensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result[key] = n.extensions[key]
	}
}

// shareable reports whether node may be published as a component.
func (n *schemaNode) shareable() bool {
	return n.Type == "object" && len(n.Properties) > 0
}

func (n *schemaNode) setExtension(key string, value any) {
	if n.extensions == nil {
		n.extensions = map[string]any{}
	}
	n.extensions[key] = value
}

// Digest identifies structurally identical schemas so they can share a
// component.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildSchemaGraph(root *hierconf.Node) *schemaNode {
	if root == nil {
		return newObjectNode()
	}
	return buildNode(root)
}

func buildNode(node *hierconf.Node) *schemaNode {
	switch node.Kind() {
	case hierconf.KindReference:
		ref, _ := node.Reference()
		out := &schemaNode{Type: "string", Format: "uri"}
		reference := map[string]any{
			"scheme": ref.Scheme.String(),
			"uri":    ref.URI,
		}
		if ref.ContentType != "" {
			reference["content_type"] = ref.ContentType
		}
		out.setExtension("x-reference", reference)
		return out
	case hierconf.KindScalar:
		value, _ := node.Value()
		return scalarNode(value)
	}

	keys := node.Keys()
	if node.IsList() && indexKeys(keys) {
		out := &schemaNode{Type: "array", Items: &schemaNode{}}
		if len(keys) > 0 {
			child, _ := node.Child(keys[0])
			out.Items = buildNode(child)
			out.Items.Default = nil
		}
		return out
	}

	out := newObjectNode()
	for _, key := range keys {
		child, _ := node.Child(key)
		out.Properties[key] = buildNode(child)
	}
	if len(keys) > 1 {
		out.setExtension("x-order", keys)
	}
	return out
}

func scalarNode(value any) *schemaNode {
	switch typed := value.(type) {
	case nil:
		return &schemaNode{Nullable: true}
	case bool:
		return &schemaNode{Type: "boolean", Default: typed}
	case int64, uint64:
		return &schemaNode{Type: "integer", Default: typed}
	case float64:
		return &schemaNode{Type: "number", Default: typed}
	case string:
		return &schemaNode{Type: "string", Default: typed}
	default:
		return &schemaNode{Type: "string"}
	}
}

func indexKeys(keys []string) bool {
	for i, key := range keys {
		if key != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
