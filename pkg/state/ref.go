package state

import (
	"errors"
	"fmt"
	"time"

	hierconf "github.com/goliatone/go-hierconf"
)

var (
	ErrETagMismatch     = errors.New("state: etag mismatch")
	ErrUnsupportedScope = errors.New("state: unsupported scope")
	ErrMissingScopeID   = errors.New("state: scope id missing")
)

// Ref points at the document of one configuration domain in one scope.
type Ref struct {
	Domain string
	Scope  hierconf.Scope
}

// Meta is what a Store knows about a saved document. An empty ETag skips the
// concurrency check in Mutate.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// scopeIDKeys maps the well-known scopes to the metadata key holding their
// ID. system has none.
var scopeIDKeys = map[string]string{
	"system": "",
	"tenant": "tenant_id",
	"org":    "org_id",
	"team":   "team_id",
	"user":   "user_id",
}

// Identifier returns the storage key for r.
func (r Ref) Identifier() (string, error) {
	key, known := scopeIDKeys[r.Scope.Name]
	if !known {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScope, r.Scope.Name)
	}
	if key == "" {
		return r.Scope.Name + "/" + r.Domain, nil
	}
	id, _ := r.Scope.Metadata[key].(string)
	if id == "" {
		return "", fmt.Errorf("%w: scope %q needs a string %q in its metadata", ErrMissingScopeID, r.Scope.Name, key)
	}
	return r.Scope.Name + "/" + id + "/" + r.Domain, nil
}

func (m Meta) overlay(next Meta) Meta {
	if next.SnapshotID != "" {
		m.SnapshotID = next.SnapshotID
	}
	if next.ETag != "" {
		m.ETag = next.ETag
	}
	if !next.UpdatedAt.IsZero() {
		m.UpdatedAt = next.UpdatedAt
	}
	if next.Extra != nil {
		m.Extra = next.Extra
	}
	return m
}
