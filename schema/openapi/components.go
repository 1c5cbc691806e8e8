package openapi

import (
	"strconv"
	"strings"
	"unicode"
)

// componentRegistry shares object schemas that occur several times in one
// tree. Shapes are counted in a first walk so every occurrence, including the
// first, points at the same component.
type componentRegistry struct {
	shareAfter int
	shapes     map[string]*componentShape
	names      map[string]struct{}
	schemas    map[string]any
}

type componentShape struct {
	path   string
	count  int
	name   string
	forced bool
}

func newComponentRegistry(shareAfter int) *componentRegistry {
	if shareAfter < 2 {
		shareAfter = 2
	}
	return &componentRegistry{
		shareAfter: shareAfter,
		shapes:     map[string]*componentShape{},
		names:      map[string]struct{}{},
		schemas:    map[string]any{},
	}
}

// count records every shareable object below node, keyed by digest. The
// first path seen names the component.
func (r *componentRegistry) count(node *schemaNode, path string) {
	if node == nil {
		return
	}
	if node.shareable() {
		digest := node.Digest()
		shape, ok := r.shapes[digest]
		if !ok {
			shape = &componentShape{path: path}
			r.shapes[digest] = shape
		}
		shape.count++
	}
	for _, key := range sortedKeys(node.Properties) {
		r.count(node.Properties[key], joinPath(path, key))
	}
	if node.Items != nil {
		r.count(node.Items, joinPath(path, "item"))
	}
}

// force publishes node under name regardless of how often it occurs.
func (r *componentRegistry) force(node *schemaNode, name string) string {
	digest := node.Digest()
	shape, ok := r.shapes[digest]
	if !ok {
		shape = &componentShape{}
		r.shapes[digest] = shape
	}
	shape.forced = true
	if shape.name == "" {
		shape.name = r.reserve(name)
	}
	return shape.name
}

// lookup returns the component name for node when its shape is shared.
func (r *componentRegistry) lookup(node *schemaNode) (string, bool) {
	if node == nil {
		return "", false
	}
	shape, ok := r.shapes[node.Digest()]
	if !ok || (!shape.forced && shape.count < r.shareAfter) {
		return "", false
	}
	if shape.name == "" {
		shape.name = r.reserve(componentName(shape.path))
	}
	return shape.name, true
}

func (r *componentRegistry) defined(name string) bool {
	_, ok := r.schemas[name]
	return ok
}

func (r *componentRegistry) define(name string, schema map[string]any) {
	r.schemas[name] = schema
}

func (r *componentRegistry) components() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	return r.schemas
}

func (r *componentRegistry) reserve(name string) string {
	if name == "" {
		name = "Schema"
	}
	candidate := name
	for suffix := 2; ; suffix++ {
		if _, taken := r.names[candidate]; !taken {
			r.names[candidate] = struct{}{}
			return candidate
		}
		candidate = name + strconv.Itoa(suffix)
	}
}

func componentRef(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

// componentName turns a dot path such as "llm.primary_model" into
// "LlmPrimaryModel".
func componentName(path string) string {
	var b strings.Builder
	upper := true
	for _, r := range path {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteByte('N')
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
