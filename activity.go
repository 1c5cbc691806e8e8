package hierconf

import (
	"context"
	"time"

	"github.com/goliatone/go-hierconf/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified about loads, overrides,
// merges and content resolution. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *managerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on emitted events. Defaults to
// "config".
func WithActivityChannel(channel string) Option {
	return func(cfg *managerConfig) {
		cfg.activityChannel = channel
	}
}

// WithActivityIdentity stamps actor, user and tenant IDs on emitted events
// that do not carry their own.
func WithActivityIdentity(identity activity.Identity) Option {
	return func(cfg *managerConfig) {
		cfg.activityIdentity = identity
	}
}

// WithActivityVerbs limits emitted events to the listed verbs.
func WithActivityVerbs(verbs ...string) Option {
	return func(cfg *managerConfig) {
		cfg.activityVerbs = append([]string(nil), verbs...)
	}
}

// WithActivityClock overrides the timestamp source for emitted events.
func WithActivityClock(clock func() time.Time) Option {
	return func(cfg *managerConfig) {
		cfg.activityClock = clock
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (m *Manager) ActivityHooks() activity.Hooks {
	if m == nil {
		return nil
	}
	return m.cfg.activityHooks.Compact()
}

// emit delivers best-effort: hook failures never fail the operation that
// triggered them.
func (m *Manager) emit(event activity.Event) {
	if !m.emitter.Enabled() {
		return
	}
	_ = m.emitter.Emit(context.Background(), event)
}

func layerContext(layer loadedLayer, index int) activity.LayerContext {
	return activity.LayerContext{
		Name:       layer.scope.Name,
		Label:      layer.scope.Label,
		Priority:   layer.scope.Priority,
		Metadata:   copyMetadata(layer.scope.Metadata),
		Source:     layer.tree.Source,
		Index:      index,
		SnapshotID: layer.snapshotID,
	}
}
