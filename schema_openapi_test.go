package hierconf_test

import (
	"testing"

	hierconf "github.com/goliatone/go-hierconf"
	openapi "github.com/goliatone/go-hierconf/schema/openapi"
	"github.com/google/go-cmp/cmp"
)

func TestOpenAPIGeneratorIntegration(t *testing.T) {
	manager := hierconf.NewManager(openapi.Option())
	if err := manager.LoadDocument([]byte("enabled: true\nname: service\n"), "base"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if err := manager.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	doc, err := manager.Schema()
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	if doc.Format != hierconf.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", hierconf.SchemaFormatOpenAPI, doc.Format)
	}
	schema, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected schema map, got %T", doc.Document)
	}
	paths, ok := schema["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected paths map, got %T", schema["paths"])
	}
	pathItem, ok := paths["/config"].(map[string]any)
	if !ok {
		t.Fatalf("expected /config path map, got %T", paths["/config"])
	}
	operation, ok := pathItem["put"].(map[string]any)
	if !ok {
		t.Fatalf("expected put operation map, got %T", pathItem["put"])
	}
	requestBody := operation["requestBody"].(map[string]any)
	content := requestBody["content"].(map[string]any)
	media, ok := content["application/json"].(map[string]any)
	if !ok {
		t.Fatalf("expected application/json content, got %T", content["application/json"])
	}
	body := media["schema"].(map[string]any)
	props := body["properties"].(map[string]any)
	if _, ok := props["enabled"]; !ok {
		t.Fatalf("expected enabled property, got %v", props)
	}
}

func TestDescriptorSchema(t *testing.T) {
	manager := hierconf.NewManager(hierconf.WithScopeSchema(true))
	doc := []byte(`
llm:
  model: gpt
  temperature: 0.7
tags: [a, b]
prompt:
  uri: ref://prompts.system
prompts:
  system: hello
`)
	if err := manager.LoadDocument(doc, "base.yaml"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if err := manager.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	schema, err := manager.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if schema.Format != hierconf.SchemaFormatDescriptors {
		t.Fatalf("expected descriptor format, got %q", schema.Format)
	}
	got := schema.Document.([]hierconf.FieldDescriptor)
	want := []hierconf.FieldDescriptor{
		{Path: "llm.model", Type: "string", Source: "base.yaml"},
		{Path: "llm.temperature", Type: "float64", Source: "base.yaml"},
		{Path: "tags", Type: "[]string", Source: "base.yaml"},
		{Path: "prompt", Type: "reference:ref", Source: "base.yaml"},
		{Path: "prompts.system", Type: "string", Source: "base.yaml"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptors mismatch (-want +got):\n%s", diff)
	}

	if len(schema.Scopes) != 1 || schema.Scopes[0].Source != "base.yaml" {
		t.Fatalf("expected one scope for base.yaml, got %+v", schema.Scopes)
	}
}

func TestSchemaRequiresMerge(t *testing.T) {
	manager := hierconf.NewManager()
	if _, err := manager.Schema(); err == nil {
		t.Fatalf("expected error before merge")
	}
}
