package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is one configuration lifecycle occurrence. Identity fields are plain
// strings so sinks decide how to parse them.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Deliverable reports whether the event names a verb and the object it
// happened to. Hooks never see events that are not deliverable.
func (e Event) Deliverable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is an ordered fan-out list.
type Hooks []ActivityHook

// Compact drops nil hooks. The result never aliases h.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook == nil {
			continue
		}
		out = append(out, hook)
	}
	return out
}

func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event once and hands the same copy to every hook in
// order. Every hook runs even when an earlier one fails; failures are joined
// and tagged with the hook position.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if !h.Enabled() {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.Deliverable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var failures error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			failures = errors.Join(failures, fmt.Errorf("activity hook %d (%s): %w", i, normalized.Verb, err))
		}
	}
	return failures
}

// NormalizeEvent returns a trimmed deep copy of event. A zero OccurredAt is
// set to the current time.
func NormalizeEvent(event Event) Event {
	return normalizeAt(event, time.Now)
}

func normalizeAt(event Event, now func() time.Time) Event {
	out := Event{
		Verb:           strings.TrimSpace(event.Verb),
		ActorID:        strings.TrimSpace(event.ActorID),
		UserID:         strings.TrimSpace(event.UserID),
		TenantID:       strings.TrimSpace(event.TenantID),
		ObjectType:     strings.TrimSpace(event.ObjectType),
		ObjectID:       strings.TrimSpace(event.ObjectID),
		Channel:        strings.TrimSpace(event.Channel),
		DefinitionCode: strings.TrimSpace(event.DefinitionCode),
		Metadata:       cloneMap(event.Metadata),
		OccurredAt:     event.OccurredAt,
	}
	if len(event.Recipients) > 0 {
		out.Recipients = append(make([]string, 0, len(event.Recipients)), event.Recipients...)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = now()
	}
	return out
}

// cloneMap copies nested maps and slices so hooks can keep metadata without
// observing later changes by the caller.
func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}
