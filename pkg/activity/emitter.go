package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is stamped on events that do not name a channel.
const DefaultChannel = "config"

// Identity is the actor a manager acts on behalf of. Empty fields are left
// for the event builder or the sink to fill.
type Identity struct {
	ActorID  string
	UserID   string
	TenantID string
}

// Config controls what an Emitter delivers and the defaults it applies.
type Config struct {
	Enabled  bool
	Channel  string
	Identity Identity
	// Verbs restricts delivery to the listed verbs. Empty delivers all.
	Verbs []string
	// Clock stamps OccurredAt on events that carry none. Defaults to time.Now.
	Clock func() time.Time
}

// Emitter applies Config defaults and forwards events to Hooks.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	identity Identity
	verbs    map[string]struct{}
	clock    func() time.Time
}

func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{
		hooks:    hooks.Compact(),
		channel:  strings.TrimSpace(cfg.Channel),
		identity: cfg.Identity,
		clock:    cfg.Clock,
	}
	e.enabled = cfg.Enabled && e.hooks.Enabled()
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	for _, verb := range cfg.Verbs {
		verb = strings.ToLower(strings.TrimSpace(verb))
		if verb == "" {
			continue
		}
		if e.verbs == nil {
			e.verbs = map[string]struct{}{}
		}
		e.verbs[verb] = struct{}{}
	}
	return e
}

// Enabled reports whether Emit would reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Accepts reports whether events with verb pass the verb filter.
func (e *Emitter) Accepts(verb string) bool {
	if e == nil {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	_, ok := e.verbs[strings.ToLower(strings.TrimSpace(verb))]
	return ok
}

// Emit fills channel, identity and timestamp where the event leaves them
// empty, then notifies the hooks. Filtered or disabled events return nil.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() || !e.Accepts(event.Verb) {
		return nil
	}
	event = normalizeAt(event, e.clock)
	if event.Channel == "" {
		event.Channel = e.channel
	}
	if event.ActorID == "" {
		event.ActorID = strings.TrimSpace(e.identity.ActorID)
	}
	if event.UserID == "" {
		event.UserID = strings.TrimSpace(e.identity.UserID)
	}
	if event.TenantID == "" {
		event.TenantID = strings.TrimSpace(e.identity.TenantID)
	}
	return e.hooks.Notify(ctx, event)
}
