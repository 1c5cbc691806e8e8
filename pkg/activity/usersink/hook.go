// Package usersink forwards configuration activity to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-hierconf/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook is an activity.ActivityHook writing one ActivityRecord per event.
//
// User and tenant IDs missing from the event are taken from the layer's
// scope metadata (user_id, tenant_id). IDs that are not UUIDs are kept in the
// record data under actor_ref, user_ref and tenant_ref.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits forwarding to these verbs. Empty forwards everything.
	Verbs []string
}

func NewHook(sink usertypes.ActivitySink, verbs ...string) Hook {
	return Hook{Sink: sink, Verbs: append([]string(nil), verbs...)}
}

func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Deliverable() || !h.forwards(event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, toRecord(event))
}

func (h Hook) forwards(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	for _, allowed := range h.Verbs {
		if strings.EqualFold(strings.TrimSpace(allowed), verb) {
			return true
		}
	}
	return false
}

func toRecord(event activity.Event) usertypes.ActivityRecord {
	data := event.Metadata
	if data == nil {
		data = map[string]any{}
	}
	scopeMeta, _ := data["scope_metadata"].(map[string]any)

	record := usertypes.ActivityRecord{
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	record.ActorID = identity(data, "actor_ref", event.ActorID)
	record.UserID = identity(data, "user_ref", firstID(event.UserID, scopeMeta["user_id"]))
	record.TenantID = identity(data, "tenant_ref", firstID(event.TenantID, scopeMeta["tenant_id"]))
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = event.Recipients
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record
}

// identity parses raw as a UUID. Anything else non-empty is stored in data
// under refKey and uuid.Nil is returned.
func identity(data map[string]any, refKey, raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		data[refKey] = raw
		return uuid.Nil
	}
	return id
}

func firstID(explicit string, fallback any) string {
	if explicit != "" {
		return explicit
	}
	value, _ := fallback.(string)
	return strings.TrimSpace(value)
}
