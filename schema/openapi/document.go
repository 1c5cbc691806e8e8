package openapi

import (
	"fmt"
	"strings"
)

type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	root     *schemaNode
}

func newDocumentBuilder(config generatorConfig, root *schemaNode) *documentBuilder {
	return &documentBuilder{
		config:   config,
		registry: newComponentRegistry(config.shareAfter),
		root:     root,
	}
}

func (b *documentBuilder) build() (map[string]any, error) {
	if b.root == nil {
		return nil, fmt.Errorf("openapi: root schema node cannot be nil")
	}
	b.registry.count(b.root, "")
	if b.config.rootComponent != "" {
		b.registry.force(b.root, b.config.rootComponent)
	}
	body := b.schemaFor(b.root)

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths": map[string]any{
			b.config.basePath: b.buildPathItem(body),
		},
	}
	if components := b.registry.components(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

// buildPathItem describes reading the merged tree and, unless read-only,
// replacing it with a document of the same shape.
func (b *documentBuilder) buildPathItem(body map[string]any) map[string]any {
	content := map[string]any{
		b.config.contentType: map[string]any{"schema": body},
	}
	item := map[string]any{
		"get": map[string]any{
			"operationId": "getConfig",
			"summary":     "Read the merged configuration",
			"responses": map[string]any{
				"200": map[string]any{
					"description": "Merged configuration",
					"content":     content,
				},
			},
		},
	}
	if !b.config.readOnly {
		item["put"] = map[string]any{
			"operationId": "replaceConfig",
			"summary":     "Replace the configuration layer",
			"requestBody": map[string]any{
				"required": true,
				"content":  content,
			},
			"responses": map[string]any{
				"204": map[string]any{"description": "Configuration replaced"},
			},
		}
	}
	return item
}

// schemaFor renders node, replacing shared shapes with component references.
func (b *documentBuilder) schemaFor(node *schemaNode) map[string]any {
	if name, ok := b.registry.lookup(node); ok {
		if !b.registry.defined(name) {
			b.registry.define(name, map[string]any{})
			b.registry.define(name, b.inline(node))
		}
		return componentRef(name)
	}
	return b.inline(node)
}

func (b *documentBuilder) inline(node *schemaNode) map[string]any {
	result := node.baseMap()
	if node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedKeys(node.Properties) {
			props[key] = b.schemaFor(node.Properties[key])
		}
		result["properties"] = props
	}
	if node.Items != nil {
		result["items"] = b.schemaFor(node.Items)
	}
	node.writeExtensions(result)
	return result
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	for _, field := range []string{"title", "version"} {
		if value, _ := info[field].(string); value == "" {
			return fmt.Errorf("openapi: info.%s must be set", field)
		}
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		if !strings.HasPrefix(pathKey, "/") {
			return fmt.Errorf("openapi: path %q must start with /", pathKey)
		}
		item, _ := pathValue.(map[string]any)
		if len(item) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range item {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if id, _ := operation["operationId"].(string); id == "" {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			if responses, _ := operation["responses"].(map[string]any); len(responses) == 0 {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
			if body, ok := operation["requestBody"].(map[string]any); ok {
				if content, _ := body["content"].(map[string]any); len(content) == 0 {
					return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, pathKey)
				}
			}
		}
	}
	return nil
}
