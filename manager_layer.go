package hierconf

import "github.com/goliatone/go-hierconf/layering"

// LayerWith folds plain maps ordered strongest to weakest into one layer and
// appends it above everything loaded so far.
func (m *Manager) LayerWith(source string, layers ...map[string]any) error {
	if len(layers) == 0 {
		return nil
	}
	merged := layering.MergeMaps(layers...)
	if merged == nil {
		merged = map[string]any{}
	}
	tree, err := m.loader.Build(merged, source)
	if err != nil {
		return err
	}
	m.appendLayer(tree, Scope{}, "")
	return nil
}
