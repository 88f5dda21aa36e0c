package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/agentloop/config"
	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/memory"
	"github.com/agentloop/agentloop/model"
)

func TestFacadeRespond(t *testing.T) {
	backend := model.NewMockBackend("mock")
	backend.AddResponse("hello", "hi there")

	loop, err := New(func(o *Options) {
		o.Backends = []model.Backend{backend}
		o.TokenCounter = memory.HeuristicCounter{}
	})
	require.NoError(t, err)
	defer loop.Close()

	messages, err := loop.Respond(context.Background(), "thread-1", "user-1", "hello")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, core.RoleAssistant, messages[0].Role)
	assert.Equal(t, "hi there", messages[0].Content)

	history, err := loop.History(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFacadeFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = []config.BackendConfig{{Name: "test", Provider: "mock"}}
	cfg.Checkpoint.Path = ""

	loop, err := NewFromConfig(cfg, func(o *Options) {
		o.TokenCounter = memory.HeuristicCounter{}
	})
	require.NoError(t, err)
	defer loop.Close()

	messages, err := loop.Respond(context.Background(), "thread-1", "user-1", "hello")
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestFacadeConfigWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = []config.BackendConfig{{Name: "test", Provider: "mock"}}
	cfg.Checkpoint.Path = ""
	cfg.Retry.BaseDelay = 250 * time.Millisecond
	cfg.Retry.MaxDelay = 4 * time.Second
	cfg.Memory.UpdateWorkers = 7
	cfg.Memory.UpdateQueue = 128
	cfg.KnowledgeBase.BaseURL = "http://kb.local"
	cfg.KnowledgeBase.ChatID = "chat-1"
	cfg.LogLevel = "debug"

	apply, err := configOptions(cfg)
	require.NoError(t, err)

	var opts Options
	apply(&opts)

	assert.Equal(t, 250*time.Millisecond, opts.RetryBaseDelay)
	assert.Equal(t, 4*time.Second, opts.RetryMaxDelay)
	assert.Equal(t, 7, opts.MemoryUpdateWorkers)
	assert.Equal(t, 128, opts.MemoryUpdateQueue)
	require.Len(t, opts.Tools, 1)
	assert.Equal(t, "query_knowledge_base", opts.Tools[0].Name())
	require.NotNil(t, opts.Logger)
}

func TestApplyParams(t *testing.T) {
	dst := model.Params{MaxTokens: 1024, Temperature: 0.2}
	applyParams(&dst, model.Params{ReasoningEffort: "high"})
	assert.Equal(t, int64(1024), dst.MaxTokens)
	assert.InDelta(t, 0.2, dst.Temperature, 1e-9)
	assert.Equal(t, "high", dst.ReasoningEffort)

	applyParams(&dst, model.Params{MaxTokens: 2048})
	assert.Equal(t, int64(2048), dst.MaxTokens)
	assert.Equal(t, "high", dst.ReasoningEffort)
}

func TestFacadeDefaults(t *testing.T) {
	loop, err := New(func(o *Options) {
		o.TokenCounter = memory.HeuristicCounter{}
	})
	require.NoError(t, err)
	defer loop.Close()

	messages, err := loop.Respond(context.Background(), "thread-1", "user-1", "ping")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "ping")
}
