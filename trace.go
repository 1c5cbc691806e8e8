package hierconf

import (
	"encoding/json"
)

// Trace captures provenance information for a path across the loaded layers
// that produced the effective value.
type Trace struct {
	Path   string       `json:"path"`
	Value  any          `json:"value,omitempty"`
	Found  bool         `json:"found"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one loaded layer contributed to a traced path.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	Source     string `json:"source"`
	Index      int    `json:"index"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Trace reports the merged value at path along with what every loaded layer
// holds there, strongest layer first. Reference values are reported as
// reference markers.
func (m *Manager) Trace(path string) (Trace, error) {
	tree, err := m.mergedTree()
	if err != nil {
		return Trace{}, err
	}
	trace := Trace{Path: path}
	if node, ok := tree.NodeAt(path); ok {
		trace.Value = node.ToPlainValue()
		trace.Found = true
	}
	trace.Layers = make([]Provenance, 0, len(m.layers))
	for i := len(m.layers) - 1; i >= 0; i-- {
		layer := m.layers[i]
		entry := Provenance{
			Scope:      layer.scope.clone(),
			Source:     layer.tree.Source,
			Index:      i,
			SnapshotID: layer.snapshotID,
			Path:       path,
		}
		if node, ok := layer.tree.NodeAt(path); ok {
			entry.Value = node.ToPlainValue()
			entry.Found = true
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return trace, nil
}

// Winner returns the strongest layer holding a value at the traced path.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
