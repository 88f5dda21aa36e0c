package sqlitevec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/agentloop/memory"
)

// wordEmbedder maps known words onto fixed unit vectors so distance ordering
// in tests is deterministic without a network call.
type wordEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (e *wordEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (e *wordEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *wordEmbedder) Dimension() int { return 3 }

func newTestStore(t *testing.T) (*Store, *wordEmbedder) {
	t.Helper()

	embedder := &wordEmbedder{vectors: map[string][]float32{
		"The user lives in Berlin":  {1, 0, 0},
		"The user likes espresso":   {0, 1, 0},
		"The user plays the violin": {0, 0, 1},
		"where does the user live?": {0.9, 0.1, 0},
	}}
	store, err := New(filepath.Join(t.TempDir(), "facts.db"), embedder)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, embedder
}

func fact(userID, text string) memory.Fact {
	return memory.Fact{UserID: userID, Text: text, CreatedAt: time.Now().UTC()}
}

func TestStoreUpsertAndSearch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user lives in Berlin")))
	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user likes espresso")))
	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user plays the violin")))

	facts, err := store.Search(ctx, "user-1", "where does the user live?", 2)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "The user lives in Berlin", facts[0])
}

func TestStoreUpsertIdempotent(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user lives in Berlin")))
	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user lives in Berlin")))
	// the duplicate is skipped before embedding
	assert.Equal(t, 1, embedder.calls)

	facts, err := store.Search(ctx, "user-1", "where does the user live?", 10)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestStoreSearchIsolatesUsers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user lives in Berlin")))
	require.NoError(t, store.Upsert(ctx, fact("user-2", "The user likes espresso")))

	facts, err := store.Search(ctx, "user-2", "where does the user live?", 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "The user likes espresso", facts[0])
}

func TestStoreUpsertEmbedFailureLeavesNoRow(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	embedder.err = errors.New("embedding service down")
	err := store.Upsert(ctx, fact("user-1", "The user lives in Berlin"))
	require.Error(t, err)

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM facts`).Scan(&count))
	assert.Zero(t, count, "a failed embedding must not strand a fact row")

	// once the embedder recovers the same fact is stored and searchable
	embedder.err = nil
	require.NoError(t, store.Upsert(ctx, fact("user-1", "The user lives in Berlin")))

	facts, err := store.Search(ctx, "user-1", "where does the user live?", 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestStoreSearchZeroLimit(t *testing.T) {
	store, _ := newTestStore(t)

	facts, err := store.Search(context.Background(), "user-1", "anything", 0)
	require.NoError(t, err)
	assert.Nil(t, facts)
}
