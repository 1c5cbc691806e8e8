package hierconf

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTraceReportsLayersStrongestFirst(t *testing.T) {
	system, err := LoadLayer(NewScope("system", ScopePrioritySystem, WithScopeLabel("System")),
		[]byte("llm:\n  model: gpt\n  temperature: 0.7\n"), WithSnapshotID("sys-1"))
	if err != nil {
		t.Fatalf("LoadLayer: %v", err)
	}
	user, err := LoadLayer(NewScope("user", ScopePriorityUser),
		[]byte("llm:\n  temperature: 0.2\n"), WithSnapshotID("user-1"))
	if err != nil {
		t.Fatalf("LoadLayer: %v", err)
	}
	stack, err := NewStack(system, user)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	manager, err := stack.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	cases := []struct {
		path   string
		value  any
		found  []bool
		winner string
	}{
		{"llm.temperature", 0.2, []bool{true, true}, "user"},
		{"llm.model", "gpt", []bool{false, true}, "system"},
		{"llm.missing", nil, []bool{false, false}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			trace, err := manager.Trace(tc.path)
			if err != nil {
				t.Fatalf("Trace: %v", err)
			}
			if trace.Value != tc.value || trace.Found != (tc.value != nil) {
				t.Fatalf("unexpected trace value %v (found=%t)", trace.Value, trace.Found)
			}
			found := make([]bool, len(trace.Layers))
			for i, layer := range trace.Layers {
				found[i] = layer.Found
			}
			if diff := cmp.Diff(tc.found, found); diff != "" {
				t.Fatalf("found mismatch (-want +got):\n%s", diff)
			}
			winner, ok := trace.Winner()
			if ok != (tc.winner != "") || winner.Scope.Name != tc.winner {
				t.Fatalf("unexpected winner %+v", winner)
			}
		})
	}

	trace, _ := manager.Trace("llm.temperature")
	if trace.Layers[0].SnapshotID != "user-1" || trace.Layers[0].Index != 1 {
		t.Fatalf("unexpected strongest layer %+v", trace.Layers[0])
	}
	if trace.Layers[1].Scope.Label != "System" || trace.Layers[1].Source != "system" {
		t.Fatalf("unexpected weakest layer %+v", trace.Layers[1])
	}
}

func TestTraceRendersReferencesAsMarkers(t *testing.T) {
	manager := mergedManager(t, nil, "prompt: file://a.md\n", "prompt:\n  uri: file://b.md\n")
	trace, err := manager.Trace("prompt")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if uri, ok := AsReferenceMarker(trace.Value); !ok || uri != "file://b.md" {
		t.Fatalf("expected reference marker, got %#v", trace.Value)
	}
	if uri, ok := AsReferenceMarker(trace.Layers[1].Value); !ok || uri != "file://a.md" {
		t.Fatalf("expected base reference marker, got %#v", trace.Layers[1].Value)
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	manager := mergedManager(t, nil, "name: svc\n", "name: api\n")
	trace, err := manager.Trace("name")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("TraceFromJSON: %v", err)
	}
	if decoded.Path != "name" || decoded.Value != "api" || len(decoded.Layers) != 2 {
		t.Fatalf("unexpected decoded trace %+v", decoded)
	}
	if decoded.Layers[0].Source != "team" || decoded.Layers[1].Source != "base" {
		t.Fatalf("unexpected layer order %+v", decoded.Layers)
	}

	if _, err := NewManager().Trace("name"); !errors.Is(err, ErrNotMerged) {
		t.Fatalf("expected ErrNotMerged, got %v", err)
	}
}
