package history

import (
	"context"
	"sync"

	"github.com/ignite/delivery-relay/internal/domain"
)

// MemoryStore keeps the newest maxEntries outcomes in a ring.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []Entry // newest last
	maxEntries int
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &MemoryStore{maxEntries: maxEntries}
}

func (m *MemoryStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.maxEntries {
		m.entries = m.entries[len(m.entries)-m.maxEntries:]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newestFirst(limit, func(Entry) bool { return true })
}

func (m *MemoryStore) FollowUps(_ context.Context, limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newestFirst(limit, func(e Entry) bool {
		return e.Status == domain.StatusRecipientNotFound
	})
}

// newestFirst walks the ring backwards collecting matching entries.
// Callers hold at least the read lock.
func (m *MemoryStore) newestFirst(limit int, match func(Entry) bool) []Entry {
	if limit <= 0 {
		limit = 50
	}
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if match(m.entries[i]) {
			out = append(out, m.entries[i])
		}
	}
	return out
}
