package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	hierconf "github.com/goliatone/go-hierconf"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store intended for tests and examples. Documents
// are kept as encoded YAML keyed by Ref.Identifier(). Save assigns a fresh
// SnapshotID, stamps a missing UpdatedAt and derives the ETag from the
// document bytes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	data []byte
	meta Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (*hierconf.Node, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	doc, err := hierconf.NewLoader().Load(record.data, key)
	if err != nil {
		return nil, Meta{}, false, err
	}
	return doc, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, doc *hierconf.Node, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	data, err := hierconf.Encode(doc)
	if err != nil {
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.SnapshotID = uuid.NewString()
	saved.ETag = etag(data)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{data: data, meta: saved}
	s.mu.Unlock()
	return cloneMeta(saved), nil
}

// Put stores a raw YAML document with meta as is.
func (s *MemoryStore) Put(ref Ref, data []byte, meta Meta) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if _, err := hierconf.NewLoader().Load(data, key); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[key] = memoryRecord{data: append([]byte(nil), data...), meta: cloneMeta(meta)}
	s.mu.Unlock()
	return nil
}

func etag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
