package openapi

import (
	"encoding/json"
	"sync"
	"testing"

	hierconf "github.com/goliatone/go-hierconf"
	"github.com/google/go-cmp/cmp"
)

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Custom Service", "2.0.0", WithInfoDescription("custom schema")),
		WithBasePath("settings"),
		WithContentType("application/yaml"),
		WithReadOnly(),
		WithSharedComponents(3),
		WithSharedComponents(1),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}

	want := generatorConfig{
		openAPIVersion: "3.1.0",
		info: openapiInfo{
			Title:       "Custom Service",
			Version:     "2.0.0",
			Description: "custom schema",
		},
		basePath:    "/settings",
		contentType: "application/yaml",
		readOnly:    true,
		shareAfter:  3,
	}
	if diff := cmp.Diff(want, internal.config, cmp.AllowUnexported(generatorConfig{})); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func loadTree(t *testing.T, doc string) *hierconf.Node {
	t.Helper()
	tree, err := hierconf.NewLoader().Load([]byte(doc), "test.yaml")
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	return tree
}

func generate(t *testing.T, tree *hierconf.Node, opts ...GeneratorOption) map[string]any {
	t.Helper()
	doc, err := NewGenerator(opts...).Generate(tree)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if doc.Format != hierconf.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", hierconf.SchemaFormatOpenAPI, doc.Format)
	}
	document, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if err := validateDocument(document); err != nil {
		t.Fatalf("generated document failed validation: %v", err)
	}
	return normalize(t, document)
}

// normalize round-trips through JSON so expectations can be written as
// plain maps.
func normalize(t *testing.T, value map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	return out
}

func requestSchema(t *testing.T, document map[string]any) map[string]any {
	t.Helper()
	paths := document["paths"].(map[string]any)
	item := paths["/config"].(map[string]any)
	response := item["get"].(map[string]any)["responses"].(map[string]any)["200"].(map[string]any)
	read := response["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)

	body := item["put"].(map[string]any)["requestBody"].(map[string]any)
	write := body["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	if diff := cmp.Diff(read, write); diff != "" {
		t.Fatalf("read and write schemas differ (-get +put):\n%s", diff)
	}
	return read
}

func TestGeneratorScalars(t *testing.T) {
	t.Parallel()

	tree := loadTree(t, `
enabled: true
name: service
retries: 3
threshold: 0.75
missing: null
`)
	got := requestSchema(t, generate(t, tree))
	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"enabled":   map[string]any{"type": "boolean", "default": true},
			"name":      map[string]any{"type": "string", "default": "service"},
			"retries":   map[string]any{"type": "integer", "default": float64(3)},
			"threshold": map[string]any{"type": "number", "default": 0.75},
			"missing":   map[string]any{"nullable": true},
		},
		"x-order": []any{"enabled", "name", "retries", "threshold", "missing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratorListsAndReferences(t *testing.T) {
	t.Parallel()

	tree := loadTree(t, `
hosts:
  - us-east-1
  - us-west-2
prompt:
  uri: file://prompts/system.md
  content_type: text/markdown
`)
	got := requestSchema(t, generate(t, tree))
	props := got["properties"].(map[string]any)

	wantHosts := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	if diff := cmp.Diff(wantHosts, props["hosts"]); diff != "" {
		t.Fatalf("hosts mismatch (-want +got):\n%s", diff)
	}

	wantPrompt := map[string]any{
		"type":   "string",
		"format": "uri",
		"x-reference": map[string]any{
			"scheme":       "file",
			"uri":          "file://prompts/system.md",
			"content_type": "text/markdown",
		},
	}
	if diff := cmp.Diff(wantPrompt, props["prompt"]); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratorSharesIdenticalComponents(t *testing.T) {
	t.Parallel()

	tree := loadTree(t, `
primary:
  host: db.local
  port: 5432
secondary:
  host: db.local
  port: 5432
`)
	document := generate(t, tree)
	props := requestSchema(t, document)["properties"].(map[string]any)

	for _, key := range []string{"primary", "secondary"} {
		if got := props[key].(map[string]any)["$ref"]; got != "#/components/schemas/Primary" {
			t.Fatalf("expected %s to reference the shared component, got %v", key, props[key])
		}
	}
	components := document["components"].(map[string]any)["schemas"].(map[string]any)
	shared, ok := components["Primary"].(map[string]any)
	if !ok {
		t.Fatalf("expected Primary component, got %v", components)
	}
	if shared["type"] != "object" {
		t.Fatalf("unexpected component %v", shared)
	}

	unshared := generate(t, tree, WithSharedComponents(3))
	if _, ok := unshared["components"]; ok {
		t.Fatalf("expected no components below the sharing threshold, got %v", unshared["components"])
	}
}

func TestGeneratorNestedComponentNames(t *testing.T) {
	t.Parallel()

	tree := loadTree(t, `
llm:
  primary_model:
    name: gpt
  fallback:
    name: gpt
`)
	document := generate(t, tree)
	components := document["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := components["LlmFallback"]; !ok {
		t.Fatalf("expected component named after the first path, got %v", components)
	}
}

func TestGeneratorReadOnly(t *testing.T) {
	t.Parallel()

	document := generate(t, loadTree(t, "name: api\n"), WithReadOnly(), WithBasePath("/v1/settings"))
	item := document["paths"].(map[string]any)["/v1/settings"].(map[string]any)
	if _, ok := item["put"]; ok {
		t.Fatalf("read-only documents must not describe writes")
	}
	if _, ok := item["get"]; !ok {
		t.Fatalf("expected get operation, got %v", item)
	}
}

func TestGeneratorRootComponent(t *testing.T) {
	t.Parallel()

	tree := loadTree(t, "service:\n  name: api\n")
	document := generate(t, tree, WithRootComponent("Settings"))

	if got := requestSchema(t, document)["$ref"]; got != "#/components/schemas/Settings" {
		t.Fatalf("expected root reference, got %v", got)
	}
	components := document["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := components["Settings"]; !ok {
		t.Fatalf("expected Settings component, got %v", components)
	}
}

func TestGeneratorNil(t *testing.T) {
	t.Parallel()

	document := generate(t, nil)
	schema := requestSchema(t, document)
	if schema["type"] != "object" {
		t.Fatalf("expected empty object schema, got %v", schema)
	}
}

func TestOptionWiresManager(t *testing.T) {
	t.Parallel()

	manager := hierconf.NewManager(Option(WithInfo("Agent", "1.0.0")))
	if err := manager.LoadDocument([]byte("llm:\n  model: gpt\n"), "base"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if err := manager.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc, err := manager.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if doc.Format != hierconf.SchemaFormatOpenAPI {
		t.Fatalf("expected openapi format, got %q", doc.Format)
	}
	info := doc.Document.(map[string]any)["info"].(map[string]any)
	if info["title"] != "Agent" {
		t.Fatalf("expected custom title, got %v", info)
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()
	tree := loadTree(t, "service:\n  name: api\n  enabled: true\n")

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(tree)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}
