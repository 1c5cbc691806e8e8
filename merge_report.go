package hierconf

import "time"

// Resolution names how a merge conflict was settled.
type Resolution string

const (
	ResolutionOverridden    Resolution = "overridden"
	ResolutionPreserved     Resolution = "preserved"
	ResolutionReferenceKept Resolution = "reference_kept"
)

// Conflict records one position where two merge inputs disagreed.
type Conflict struct {
	Path           string     `json:"path"`
	Round          int        `json:"round"`
	BaseSource     string     `json:"base_source"`
	OverrideSource string     `json:"override_source"`
	Resolution     Resolution `json:"resolution"`
}

// ReferenceUsage records a Reference leaf present in the merged tree.
type ReferenceUsage struct {
	Path   string `json:"path"`
	URI    string `json:"uri"`
	Scheme Scheme `json:"scheme"`
	Source string `json:"source"`
}

// MergeReport summarizes a merge.
type MergeReport struct {
	Strategy   Strategy         `json:"strategy"`
	Inputs     int              `json:"inputs"`
	Conflicts  []Conflict       `json:"conflicts,omitempty"`
	References []ReferenceUsage `json:"references,omitempty"`
}

// ConflictsAt returns the conflicts recorded for path in round order.
func (r *MergeReport) ConflictsAt(path string) []Conflict {
	if r == nil {
		return nil
	}
	var out []Conflict
	for _, conflict := range r.Conflicts {
		if conflict.Path == path {
			out = append(out, conflict)
		}
	}
	return out
}

// conflict is a no-op on a nil report and for leaves that already agree.
func (r *MergeReport) conflict(base, override *Node, round int, resolution Resolution) {
	if r == nil {
		return
	}
	if base.IsLeaf() && override.IsLeaf() && sameLeaf(base, override) {
		return
	}
	r.Conflicts = append(r.Conflicts, Conflict{
		Path:           override.Path,
		Round:          round,
		BaseSource:     base.Source,
		OverrideSource: override.Source,
		Resolution:     resolution,
	})
}

func (r *MergeReport) collectReferences(root *Node) {
	r.References = nil
	root.Walk(func(node *Node) bool {
		if ref, ok := node.Reference(); ok {
			r.References = append(r.References, ReferenceUsage{
				Path:   node.Path,
				URI:    ref.URI,
				Scheme: ref.Scheme,
				Source: node.Source,
			})
		}
		return true
	})
}

// MergeLogEvent describes one Merge call.
type MergeLogEvent struct {
	Strategy  Strategy
	Inputs    int
	Conflicts int
	Duration  time.Duration
	Err       error
}

// MergeLogger records merge events.
type MergeLogger interface {
	LogMerge(MergeLogEvent)
}

// MergeLoggerFunc adapts a function to MergeLogger.
type MergeLoggerFunc func(MergeLogEvent)

// LogMerge implements MergeLogger.
func (f MergeLoggerFunc) LogMerge(event MergeLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopMergeLogger struct{}

func (noopMergeLogger) LogMerge(MergeLogEvent) {}
