package editor

import (
	"github.com/scribehq/scribe/internal/cache"
)

// Store persists one snapshot per editing context. Implementations must treat
// malformed stored data as absence, never as an error, and Clear must be
// idempotent. Save stamps SavedAt and the schema version; callers never
// supply them.
type Store interface {
	Save(ctx Context, fields Fields) (Snapshot, error)
	Load(ctx Context) (Snapshot, bool)
	Exists(ctx Context) bool
	Clear(ctx Context) error
}

// MemoryStore keeps snapshots for the lifetime of the process. Used in tests
// and as the ephemeral drafts backend.
type MemoryStore struct {
	snapshots *cache.Cache[string, Snapshot]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: cache.NewCache[string, Snapshot](),
	}
}

func (m *MemoryStore) Save(ctx Context, fields Fields) (Snapshot, error) {
	snap := newSnapshot(fields)
	m.snapshots.Set(ctx.Key(), snap)
	return snap, nil
}

func (m *MemoryStore) Load(ctx Context) (Snapshot, bool) {
	return m.snapshots.Get(ctx.Key())
}

func (m *MemoryStore) Exists(ctx Context) bool {
	_, ok := m.snapshots.Get(ctx.Key())
	return ok
}

func (m *MemoryStore) Clear(ctx Context) error {
	m.snapshots.Delete(ctx.Key())
	return nil
}
