package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
)

// Fact is one durable piece of knowledge about a user. Facts are write-once:
// stores deduplicate on content and never mutate an existing entry.
type Fact struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FactStore persists user facts and retrieves them by semantic similarity.
type FactStore interface {
	// Upsert stores a fact, idempotent per (user, content).
	Upsert(ctx context.Context, fact Fact) error
	// Search returns up to limit fact texts for the user ranked by
	// relevance to the query.
	Search(ctx context.Context, userID, query string, limit int) ([]string, error)
}

// Service is the long-term memory interface consumed by the orchestration
// layer: semantic search at turn start, fact extraction after a turn ends.
type Service interface {
	Search(ctx context.Context, userID, query string) ([]string, error)
	Add(ctx context.Context, userID string, messages []core.Message) error
}

// Options configure a LongTermMemory instance.
type Options struct {
	// TopK is the number of facts returned per search.
	TopK int
	// Logger receives extraction and store events.
	Logger logging.Logger
}

// LongTermMemory combines a FactStore with model-based fact extraction to
// implement Service.
type LongTermMemory struct {
	store     FactStore
	extractor *FactExtractor
	topK      int
	logger    logging.Logger
}

// NewLongTermMemory constructs the service around a store and extractor.
func NewLongTermMemory(store FactStore, extractor *FactExtractor, optFns ...func(o *Options)) *LongTermMemory {
	opts := Options{
		TopK:   5,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LongTermMemory{store: store, extractor: extractor, topK: opts.TopK, logger: opts.Logger}
}

// Search implements Service.
func (m *LongTermMemory) Search(ctx context.Context, userID, query string) ([]string, error) {
	facts, err := m.store.Search(ctx, userID, query, m.topK)
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}
	return facts, nil
}

// Add implements Service: extract durable facts from the conversation and
// upsert each one. Extraction uses an auxiliary model call; an empty
// extraction result is not an error.
func (m *LongTermMemory) Add(ctx context.Context, userID string, messages []core.Message) error {
	facts, err := m.extractor.Extract(ctx, messages)
	if err != nil {
		return fmt.Errorf("fact extraction failed: %w", err)
	}
	if len(facts) == 0 {
		m.logger.Debug("memory.add.no_facts", "user_id", userID)
		return nil
	}

	now := time.Now().UTC()
	for _, text := range facts {
		if err := m.store.Upsert(ctx, Fact{UserID: userID, Text: text, CreatedAt: now}); err != nil {
			return fmt.Errorf("fact upsert failed: %w", err)
		}
	}
	m.logger.Info("memory.add.stored", "user_id", userID, "facts", len(facts))
	return nil
}
