package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// InMemoryFactStore is a map-backed FactStore for tests and local runs.
// Search ranks facts by word overlap with the query; the top results are
// returned even when the overlap is zero, mirroring nearest-neighbor
// semantics of the vector-backed store.
type InMemoryFactStore struct {
	mu    sync.RWMutex
	facts map[string]map[string]Fact
}

// NewInMemoryFactStore creates an empty store.
func NewInMemoryFactStore() *InMemoryFactStore {
	return &InMemoryFactStore{facts: make(map[string]map[string]Fact)}
}

// Upsert implements FactStore. Re-adding the same text is a no-op.
func (s *InMemoryFactStore) Upsert(_ context.Context, fact Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.facts[fact.UserID]
	if !ok {
		byID = make(map[string]Fact)
		s.facts[fact.UserID] = byID
	}
	id := factID(fact.UserID, fact.Text)
	if _, exists := byID[id]; exists {
		return nil
	}
	byID[id] = fact
	return nil
}

// Search implements FactStore.
func (s *InMemoryFactStore) Search(_ context.Context, userID, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.facts[userID]
	if len(byID) == 0 || limit <= 0 {
		return nil, nil
	}

	queryWords := wordSet(query)
	type scored struct {
		text  string
		score int
	}
	ranked := make([]scored, 0, len(byID))
	for _, fact := range byID {
		score := 0
		for word := range wordSet(fact.Text) {
			if _, ok := queryWords[word]; ok {
				score++
			}
		}
		ranked = append(ranked, scored{text: fact.Text, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].text < ranked[j].text
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = ranked[i].text
	}
	return out, nil
}

// Count returns the number of facts stored for a user.
func (s *InMemoryFactStore) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts[userID])
}

func factID(userID, text string) string {
	sum := sha256.Sum256([]byte(userID + "\n" + text))
	return hex.EncodeToString(sum[:])
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,!?;:\"'")] = struct{}{}
	}
	return set
}
