package state

import (
	"context"
	"fmt"
	"slices"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-yaml"
	hierconf "github.com/goliatone/go-hierconf"
)

// DefaultsScopeName is reserved for the layer ResolveWithDefaults adds.
const DefaultsScopeName = "defaults"

// Store loads and saves the document behind one Ref. ok is false when
// nothing is stored yet.
type Store interface {
	Load(ctx context.Context, ref Ref) (doc *hierconf.Node, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, doc *hierconf.Node, meta Meta) (Meta, error)
}

// Mutator edits a document before Mutate saves it.
type Mutator func(doc *hierconf.Node) error

// Resolver merges stored scope documents into Managers built with Options.
// Schemas of those Managers always list their scopes.
type Resolver struct {
	Store   Store
	Options []hierconf.Option
}

// Resolve merges the documents stored for domain under scopes. Scopes with no
// document are skipped; at least one must have one.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...hierconf.Scope) (*hierconf.Manager, error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: resolve %q: no scopes given", domain)
	}
	layers, err := r.layers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("state: resolve %q: no stored documents", domain)
	}
	return r.merge(layers)
}

// ResolveWithDefaults merges defaults below every stored document. The
// defaults layer uses DefaultsScopeName and a priority one below the weakest
// scope.
func (r Resolver) ResolveWithDefaults(ctx context.Context, domain string, defaults *hierconf.Node, scopes ...hierconf.Scope) (*hierconf.Manager, error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}
	if defaults == nil {
		return nil, fmt.Errorf("state: resolve %q: defaults document is nil", domain)
	}
	priority := 0
	for i, scope := range scopes {
		if scope.Name == DefaultsScopeName {
			return nil, fmt.Errorf("state: scope name %q is reserved", DefaultsScopeName)
		}
		if i == 0 || scope.Priority-1 < priority {
			priority = scope.Priority - 1
		}
	}

	layers, err := r.layers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	scope := hierconf.NewScope(DefaultsScopeName, priority, hierconf.WithScopeLabel("Defaults"))
	return r.merge(append(layers, hierconf.NewLayer(scope, defaults)))
}

// Mutate applies fn to a copy of the stored document (an empty one when none
// exists), checks the result survives a YAML round trip and saves it. A
// non-empty meta.ETag must match the stored ETag. The returned Manager holds
// only the saved layer.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*hierconf.Manager, Meta, error) {
	if err := r.check(ref.Domain); err != nil {
		return nil, Meta{}, err
	}
	switch {
	case ref.Scope.Name == "":
		return nil, Meta{}, fmt.Errorf("state: mutate %q: scope name is empty", ref.Domain)
	case fn == nil:
		return nil, Meta{}, fmt.Errorf("state: mutate %q: nil mutator", ref.Domain)
	}

	doc, current, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q/%s: %w", ref.Domain, ref.Scope.Name, err)
	}
	if ok && doc != nil {
		doc = doc.Clone()
	} else {
		doc, current = hierconf.NewContainer("", ref.Scope.Name), Meta{}
	}
	if meta.ETag != "" && current.ETag != "" && meta.ETag != current.ETag {
		return nil, current, fmt.Errorf("%w: have %q, stored %q", ErrETagMismatch, meta.ETag, current.ETag)
	}

	if err := fn(doc); err != nil {
		return nil, current, err
	}
	checked, err := roundTrip(doc, ref.Scope.Name)
	if err != nil {
		return nil, current, err
	}
	saved, err := r.Store.Save(ctx, ref, checked, current.overlay(meta))
	if err != nil {
		return nil, current, fmt.Errorf("state: save %q/%s: %w", ref.Domain, ref.Scope.Name, err)
	}

	manager, err := r.merge([]hierconf.Layer{hierconf.NewLayer(ref.Scope, checked, hierconf.WithSnapshotID(saved.SnapshotID))})
	if err != nil {
		return nil, current, err
	}
	return manager, saved, nil
}

// Patch applies an RFC 6902 JSON patch to the stored document through
// Mutate. Key order is not preserved across the JSON conversion.
func (r Resolver) Patch(ctx context.Context, ref Ref, meta Meta, patch []byte) (*hierconf.Manager, Meta, error) {
	operations, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: decode patch: %w", err)
	}
	return r.Mutate(ctx, ref, meta, func(doc *hierconf.Node) error {
		encoded, err := hierconf.Encode(doc)
		if err != nil {
			return err
		}
		asJSON, err := yaml.YAMLToJSON(encoded)
		if err != nil {
			return fmt.Errorf("state: convert document: %w", err)
		}
		patched, err := operations.Apply(asJSON)
		if err != nil {
			return fmt.Errorf("state: apply patch: %w", err)
		}
		next, err := hierconf.NewLoader().Load(patched, doc.Source)
		if err != nil {
			return err
		}
		*doc = *next
		return nil
	})
}

func (r Resolver) check(domain string) error {
	switch {
	case r.Store == nil:
		return fmt.Errorf("state: resolver has no store")
	case domain == "":
		return fmt.Errorf("state: domain is empty")
	}
	return nil
}

func (r Resolver) layers(ctx context.Context, domain string, scopes []hierconf.Scope) ([]hierconf.Layer, error) {
	var layers []hierconf.Layer
	for _, scope := range scopes {
		doc, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q/%s: %w", domain, scope.Name, err)
		}
		if ok && doc != nil {
			layers = append(layers, hierconf.NewLayer(scope, doc, hierconf.WithSnapshotID(meta.SnapshotID)))
		}
	}
	return layers, nil
}

func (r Resolver) merge(layers []hierconf.Layer) (*hierconf.Manager, error) {
	stack, err := hierconf.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	opts := append(slices.Clone(r.Options), hierconf.WithScopeSchema(true))
	return stack.Merge(opts...)
}

// roundTrip re-parses the encoded document so only trees that can be stored
// and loaded again are saved.
func roundTrip(doc *hierconf.Node, source string) (*hierconf.Node, error) {
	encoded, err := hierconf.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("state: encode document: %w", err)
	}
	out, err := hierconf.NewLoader().Load(encoded, source)
	if err != nil {
		return nil, fmt.Errorf("state: document does not round-trip: %w", err)
	}
	return out, nil
}
