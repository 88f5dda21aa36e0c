package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/agentloop/agentloop/core"
)

// InMemoryStore is a volatile Store implementation keeping per-thread logs in
// a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Snapshots are cloned on the way in and out
// to prevent external mutation of stored state.
type InMemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Record
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{logs: make(map[string][]Record)}
}

// Latest implements Store.
func (s *InMemoryStore) Latest(_ context.Context, threadID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[threadID]
	if !ok || len(log) == 0 {
		return nil, ErrNotFound
	}
	rec := log[len(log)-1]
	rec.State = rec.State.Clone()
	return &rec, nil
}

// Append implements Store.
func (s *InMemoryStore) Append(_ context.Context, threadID string, state core.ConversationState) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := int64(len(s.logs[threadID])) + 1
	s.logs[threadID] = append(s.logs[threadID], Record{
		ThreadID:  threadID,
		Seq:       seq,
		State:     state.Clone(),
		CreatedAt: time.Now().UTC(),
	})
	return seq, nil
}

// Count reports the number of records stored for a thread.
func (s *InMemoryStore) Count(threadID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[threadID])
}
