package activity

import (
	"strings"
	"time"
)

// Event verbs emitted by configuration managers.
const (
	VerbLayerLoaded      = "config.layer.loaded"
	VerbOverridesApplied = "config.overrides.applied"
	VerbMerged           = "config.merged"
	VerbContentResolved  = "config.content.resolved"
)

// LayerContext captures the layer a configuration event refers to.
type LayerContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	Source     string
	Index      int
	SnapshotID string
}

// ConfigEventInput describes the common fields for configuration lifecycle
// events.
type ConfigEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Path           string
	URI            string
	Layer          LayerContext
	OccurredAt     time.Time
}

// BuildLayerLoadedEvent reports a document appended to a manager.
func BuildLayerLoadedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbLayerLoaded, "config.layer", input)
}

// BuildOverridesAppliedEvent reports a runtime override layer.
func BuildOverridesAppliedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbOverridesApplied, "config.layer", input)
}

// BuildMergedEvent reports a completed merge.
func BuildMergedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbMerged, "config", input)
}

// BuildContentResolvedEvent reports reference content fetched for a path.
func BuildContentResolvedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbContentResolved, "config.reference", input)
}

func buildConfigEvent(verb, objectType string, input ConfigEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = input.Path
	}
	if input.URI != "" {
		metadata = ensureMetadata(metadata)
		metadata["uri"] = input.URI
	}
	layer := input.Layer
	if layer.Source != "" {
		metadata = ensureMetadata(metadata)
		metadata["source"] = layer.Source
		metadata["layer_index"] = layer.Index
	}
	if layer.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["scope_name"] = layer.Name
		metadata["scope_priority"] = layer.Priority
		if layer.Label != "" {
			metadata["scope_label"] = layer.Label
		}
		if len(layer.Metadata) > 0 {
			metadata["scope_metadata"] = cloneMap(layer.Metadata)
		}
	}
	if layer.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = layer.SnapshotID
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := firstNonEmpty(input.ObjectID, input.Path, layer.SnapshotID, layer.Source)
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
