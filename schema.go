package hierconf

import (
	"fmt"
)

// SchemaFormat names the shape of SchemaDocument.Document.
type SchemaFormat string

const (
	// SchemaFormatDescriptors documents are []FieldDescriptor.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI documents are OpenAPI objects as map[string]any.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument is what a SchemaGenerator produced for a merged tree.
// Document must encode to JSON. Scopes is set when WithScopeSchema is on.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Scopes   []SchemaScope
}

// SchemaScope is one loaded layer, weakest first.
type SchemaScope struct {
	Name       string         `json:"name"`
	Label      string         `json:"label,omitempty"`
	Priority   int            `json:"priority"`
	Source     string         `json:"source,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
}

// SchemaGenerator describes a merged tree. Generate may be called from
// several goroutines and must accept a nil root.
type SchemaGenerator interface {
	Generate(root *Node) (SchemaDocument, error)
}

// FieldDescriptor describes a leaf path of a merged tree and the type of the
// value it holds.
type FieldDescriptor struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(root *Node) (SchemaDocument, error) {
	descriptors := deriveFieldDescriptors(root, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

func deriveFieldDescriptors(node *Node, prefix string) []FieldDescriptor {
	if node == nil {
		return nil
	}

	switch node.Kind() {
	case KindReference:
		ref, _ := node.Reference()
		return []FieldDescriptor{{
			Path:   prefix,
			Type:   "reference:" + ref.Scheme.String(),
			Source: node.Source,
		}}
	case KindScalar:
		if prefix == "" {
			return nil
		}
		value, _ := node.Value()
		return []FieldDescriptor{{
			Path:   prefix,
			Type:   typeName(value),
			Source: node.Source,
		}}
	}

	if node.IsList() && node.hasIndexKeys() {
		elementType := "any"
		if first, ok := node.Child("0"); ok {
			elementType = nodeTypeName(first)
		}
		return []FieldDescriptor{{
			Path:   prefix,
			Type:   "[]" + elementType,
			Source: node.Source,
		}}
	}

	if node.Len() == 0 {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{
			Path:   prefix,
			Type:   "map[string]any",
			Source: node.Source,
		}}
	}

	var fields []FieldDescriptor
	for _, key := range node.Keys() {
		child, _ := node.Child(key)
		fields = append(fields, deriveFieldDescriptors(child, joinPath(prefix, key))...)
	}
	return fields
}

func nodeTypeName(node *Node) string {
	switch node.Kind() {
	case KindReference:
		ref, _ := node.Reference()
		return "reference:" + ref.Scheme.String()
	case KindScalar:
		value, _ := node.Value()
		return typeName(value)
	}
	if node.IsList() {
		return "[]any"
	}
	return "map[string]any"
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

// Schema describes the merged tree with the configured SchemaGenerator,
// falling back to field descriptors. With WithScopeSchema(true) the loaded
// layers are listed strongest first.
func (m *Manager) Schema() (SchemaDocument, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return SchemaDocument{}, err
	}
	generator := m.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	doc, err := generator.Generate(tree)
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("hierconf: generate schema: %w", err)
	}
	if m.cfg.scopeSchema {
		doc.Scopes = m.schemaScopes()
	}
	return doc, nil
}

func (m *Manager) schemaScopes() []SchemaScope {
	scopes := make([]SchemaScope, 0, len(m.layers))
	for i := len(m.layers) - 1; i >= 0; i-- {
		layer := m.layers[i]
		scopes = append(scopes, SchemaScope{
			Name:       layer.scope.Name,
			Label:      layer.scope.Label,
			Priority:   layer.scope.Priority,
			Source:     layer.tree.Source,
			Metadata:   copyMetadata(layer.scope.Metadata),
			SnapshotID: layer.snapshotID,
		})
	}
	return scopes
}
