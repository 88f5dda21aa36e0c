package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/agentloop/checkpoint"
	"github.com/agentloop/agentloop/core"
)

// Interface compliance (compile-time assertion)
var _ checkpoint.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Latest(ctx, "t1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	state := core.ConversationState{
		Messages:      []core.Message{core.NewUserMessage("What is 2+2?"), core.NewAssistantMessage("4")},
		MemoryContext: "no relevant memory found",
	}
	seq, err := store.Append(ctx, "t1", state)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	rec, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, state.Messages, rec.State.Messages)
	assert.Equal(t, state.MemoryContext, rec.State.MemoryContext)
}

func TestStore_ToolCallsSurviveSerialization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := core.ConversationState{Messages: []core.Message{
		core.NewUserMessage("weather in Berlin?"),
		{
			Role: core.RoleAssistant,
			ToolCalls: []core.ToolCall{
				{ID: "tc-1", Name: "get_weather", Arguments: []byte(`{"location":"Berlin"}`)},
			},
		},
		core.NewToolResultMessage("tc-1", "18C, cloudy"),
	}}
	_, err := store.Append(ctx, "t1", state)
	require.NoError(t, err)

	rec, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rec.State.Messages, 3)
	require.Len(t, rec.State.Messages[1].ToolCalls, 1)
	assert.Equal(t, "tc-1", rec.State.Messages[1].ToolCalls[0].ID)
	assert.JSONEq(t, `{"location":"Berlin"}`, string(rec.State.Messages[1].ToolCalls[0].Arguments))
	assert.Equal(t, "tc-1", rec.State.Messages[2].ToolCallID)
}

func TestStore_SequencesPerThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, "t1", core.ConversationState{})
		require.NoError(t, err)
	}
	seq, err := store.Append(ctx, "t2", core.ConversationState{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	rec, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Seq)
}

func TestStore_ConcurrentAppendsKeepLogConsistent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Append(ctx, "t1", core.ConversationState{})
		}()
	}
	wg.Wait()

	rec, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.Seq, int64(1))

	var count int64
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM checkpoints WHERE thread_id = 't1'`).Scan(&count))
	assert.Equal(t, rec.Seq, count, "no gaps or duplicate sequence slots")
}
