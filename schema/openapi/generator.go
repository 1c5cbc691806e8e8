package openapi

import (
	hierconf "github.com/goliatone/go-hierconf"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator that describes a merged configuration
// tree as an OpenAPI 3 document: a GET returning the tree and, unless
// WithReadOnly is set, a PUT accepting a replacement of the same shape.
// Current scalar values are published as defaults and references carry an
// x-reference extension.
func NewGenerator(opts ...GeneratorOption) hierconf.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option returns a hierconf.Option that wires the OpenAPI schema generator
// into a Manager.
func Option(opts ...GeneratorOption) hierconf.Option {
	return hierconf.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(root *hierconf.Node) (hierconf.SchemaDocument, error) {
	document, err := newDocumentBuilder(g.config, buildSchemaGraph(root)).build()
	if err != nil {
		return hierconf.SchemaDocument{}, err
	}
	return hierconf.SchemaDocument{
		Format:   hierconf.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
