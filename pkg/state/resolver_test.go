package state_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	hierconf "github.com/goliatone/go-hierconf"
	"github.com/goliatone/go-hierconf/pkg/state"
)

var (
	systemScope = hierconf.NewScope("system", hierconf.ScopePrioritySystem)
	tenantScope = hierconf.NewScope("tenant", hierconf.ScopePriorityTenant,
		hierconf.WithScopeMetadata(map[string]any{"tenant_id": "acme"}))
	userScope = hierconf.NewScope("user", hierconf.ScopePriorityUser,
		hierconf.WithScopeMetadata(map[string]any{"user_id": "u42"}))
)

func put(t *testing.T, store *state.MemoryStore, scope hierconf.Scope, doc, snapshotID string) {
	t.Helper()
	ref := state.Ref{Domain: "agents", Scope: scope}
	if err := store.Put(ref, []byte(doc), state.Meta{SnapshotID: snapshotID}); err != nil {
		t.Fatalf("put %s: %v", scope.Name, err)
	}
}

func TestResolverResolveMergesScopes(t *testing.T) {
	store := state.NewMemoryStore()
	put(t, store, systemScope, "llm:\n  model: base\n  temperature: 0.7\n", "snap-system")
	put(t, store, userScope, "llm:\n  temperature: 0.2\n", "snap-user")

	resolver := state.Resolver{Store: store}
	manager, err := resolver.Resolve(context.Background(), "agents", userScope, tenantScope, systemScope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	value, ok, err := manager.Value("llm.temperature")
	if err != nil || !ok || value != 0.2 {
		t.Fatalf("expected user temperature 0.2, got %v (ok=%t, err=%v)", value, ok, err)
	}
	value, _, _ = manager.Value("llm.model")
	if value != "base" {
		t.Fatalf("expected system model, got %v", value)
	}

	trace, err := manager.Trace("llm.temperature")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(trace.Layers) != 2 {
		t.Fatalf("expected 2 trace layers, got %d", len(trace.Layers))
	}
	if trace.Layers[0].Scope.Name != "user" || trace.Layers[0].SnapshotID != "snap-user" || !trace.Layers[0].Found {
		t.Fatalf("unexpected strongest layer: %+v", trace.Layers[0])
	}
	if trace.Layers[1].Scope.Name != "system" || trace.Layers[1].SnapshotID != "snap-system" {
		t.Fatalf("unexpected weakest layer: %+v", trace.Layers[1])
	}

	doc, err := manager.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(doc.Scopes) != 2 || doc.Scopes[0].Name != "user" || doc.Scopes[1].SnapshotID != "snap-system" {
		t.Fatalf("unexpected schema scopes: %+v", doc.Scopes)
	}
}

func TestResolverResolveRequiresLayers(t *testing.T) {
	resolver := state.Resolver{Store: state.NewMemoryStore()}
	if _, err := resolver.Resolve(context.Background(), "agents", systemScope); err == nil {
		t.Fatalf("expected error when no documents exist")
	}
	if _, err := resolver.Resolve(context.Background(), "agents"); err == nil {
		t.Fatalf("expected error without scopes")
	}
	if _, err := (state.Resolver{}).Resolve(context.Background(), "agents", systemScope); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestResolverResolveWithDefaults(t *testing.T) {
	store := state.NewMemoryStore()
	put(t, store, tenantScope, "llm:\n  model: tenant-model\n", "snap-tenant")

	defaults, err := hierconf.NewLoader().Load([]byte("llm:\n  model: default\n  max_tokens: 512\n"), "defaults")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	resolver := state.Resolver{Store: store}
	manager, err := resolver.ResolveWithDefaults(context.Background(), "agents", defaults, tenantScope, userScope)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if value, _, _ := manager.Value("llm.model"); value != "tenant-model" {
		t.Fatalf("expected tenant model, got %v", value)
	}
	if value, _, _ := manager.Value("llm.max_tokens"); value != int64(512) {
		t.Fatalf("expected default max_tokens, got %v (%T)", value, value)
	}

	trace, err := manager.Trace("llm.max_tokens")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	winner, ok := trace.Winner()
	if !ok || winner.Scope.Name != state.DefaultsScopeName {
		t.Fatalf("expected defaults layer to win, got %+v", winner)
	}
	if winner.Scope.Priority != hierconf.ScopePriorityTenant-1 {
		t.Fatalf("expected defaults priority below tenant, got %d", winner.Scope.Priority)
	}
}

func TestResolverResolveWithDefaultsReservedName(t *testing.T) {
	resolver := state.Resolver{Store: state.NewMemoryStore()}
	reserved := hierconf.NewScope(state.DefaultsScopeName, 1)
	_, err := resolver.ResolveWithDefaults(context.Background(), "agents", hierconf.NewContainer("", "d"), reserved)
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected reserved scope error, got %v", err)
	}
}

type failingStore struct {
	state.Store
	err error
}

func (s failingStore) Load(context.Context, state.Ref) (*hierconf.Node, state.Meta, bool, error) {
	return nil, state.Meta{}, false, s.err
}

func TestResolverResolvePropagatesLoadErrors(t *testing.T) {
	boom := errors.New("boom")
	resolver := state.Resolver{Store: failingStore{err: boom}}
	_, err := resolver.Resolve(context.Background(), "agents", systemScope)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
}
