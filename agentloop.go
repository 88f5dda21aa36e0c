// Package agentloop provides a high-level façade over the turn runner and its
// services (model dispatch, tools, memory & checkpointing) enabling rapid
// construction of stateful conversational agents. Most applications interact
// with this package by:
//  1. Creating an AgentLoop via New() (optionally overriding default in-memory services)
//  2. Registering tools
//  3. Sending user input with Respond() or RespondStream()
//
// All defaults are safe for local development and testing; production
// deployments typically supply durable stores, real model backends and a
// structured logger.
package agentloop

import (
	"context"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/agentloop/agentloop/checkpoint"
	"github.com/agentloop/agentloop/checkpoint/sqlite"
	"github.com/agentloop/agentloop/config"
	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/dispatch"
	"github.com/agentloop/agentloop/flow"
	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/memory"
	"github.com/agentloop/agentloop/memory/sqlitevec"
	"github.com/agentloop/agentloop/model"
	"github.com/agentloop/agentloop/model/anthropic"
	"github.com/agentloop/agentloop/model/openai"
	"github.com/agentloop/agentloop/runner"
	"github.com/agentloop/agentloop/tool"
)

// Options configures the AgentLoop instance.
type Options struct {
	// SystemPrompt is the base instruction for every model call.
	SystemPrompt string

	// Backends are tried in order; the first is the starting backend unless
	// StartBackend names another. Defaults to a single mock backend.
	Backends []model.Backend

	// StartBackend selects the initial backend by name.
	StartBackend string

	// MaxAttempts bounds retries per backend before falling over.
	MaxAttempts int

	// RetryBaseDelay is the backoff before the second attempt on a backend.
	// Zero keeps the dispatcher default.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff growth. Zero keeps the dispatcher
	// default.
	RetryMaxDelay time.Duration

	// TokenBudget caps the tokens of system prompt plus history sent per
	// model call.
	TokenBudget int

	// TokenCounter overrides the tiktoken-based default.
	TokenCounter memory.TokenCounter

	// TokenEncoding names the tiktoken encoding for the default counter.
	// Empty selects cl100k_base. Ignored when TokenCounter is set.
	TokenEncoding string

	// Tools available to the model.
	Tools []tool.Tool

	// Stores (default to in-memory implementations if not provided).
	CheckpointStore checkpoint.Store
	FactStore       memory.FactStore

	// MemoryTopK is the number of facts retrieved per turn.
	MemoryTopK int

	// MemoryUpdateWorkers sizes the background updater pool. Zero keeps the
	// updater default.
	MemoryUpdateWorkers int

	// MemoryUpdateQueue bounds pending background memory jobs. Zero keeps
	// the updater default.
	MemoryUpdateQueue int

	// MaxConcurrentTurns limits turns executing at once.
	MaxConcurrentTurns int

	// AcquireTimeout bounds the wait for a turn slot.
	AcquireTimeout time.Duration

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AgentLoop is the high-level façade aggregating the runner and its services.
type AgentLoop struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new AgentLoop with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*AgentLoop, error) {
	opts := Options{
		SystemPrompt:       "You are a helpful assistant.",
		MaxAttempts:        3,
		TokenBudget:        8000,
		MemoryTopK:         5,
		MaxConcurrentTurns: 32,
		AcquireTimeout:     10 * time.Second,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Backends) == 0 {
		opts.Backends = []model.Backend{model.NewMockBackend("mock")}
	}
	if opts.CheckpointStore == nil {
		opts.CheckpointStore = checkpoint.NewInMemoryStore()
	}
	if opts.FactStore == nil {
		opts.FactStore = memory.NewInMemoryFactStore()
	}
	if opts.TokenCounter == nil {
		counter, err := memory.NewTiktokenCounter(opts.TokenEncoding)
		if err != nil {
			return nil, err
		}
		opts.TokenCounter = counter
	}

	dispatcher, err := dispatch.New(opts.Backends, func(o *dispatch.Options) {
		o.MaxAttempts = opts.MaxAttempts
		o.Start = opts.StartBackend
		o.Logger = opts.Logger
		if opts.RetryBaseDelay > 0 {
			o.BaseDelay = opts.RetryBaseDelay
		}
		if opts.RetryMaxDelay > 0 {
			o.MaxDelay = opts.RetryMaxDelay
		}
	})
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry(opts.Tools...)
	trimmer := memory.NewTrimmer(opts.TokenCounter, opts.TokenBudget, opts.Logger)
	graph := flow.NewGraph(dispatcher, registry, trimmer, opts.CheckpointStore, func(o *flow.Options) {
		o.SystemPrompt = opts.SystemPrompt
		o.Logger = opts.Logger
	})

	extractor := memory.NewFactExtractor(dispatcher, opts.Logger)
	memorySvc := memory.NewLongTermMemory(opts.FactStore, extractor, func(o *memory.Options) {
		o.TopK = opts.MemoryTopK
		o.Logger = opts.Logger
	})
	updater := memory.NewUpdater(memorySvc, func(o *memory.UpdaterOptions) {
		o.Logger = opts.Logger
		if opts.MemoryUpdateWorkers > 0 {
			o.Workers = opts.MemoryUpdateWorkers
		}
		if opts.MemoryUpdateQueue > 0 {
			o.QueueSize = opts.MemoryUpdateQueue
		}
	})

	r := runner.New(graph, opts.CheckpointStore, memorySvc, updater, func(o *runner.Options) {
		o.MaxConcurrentTurns = opts.MaxConcurrentTurns
		o.AcquireTimeout = opts.AcquireTimeout
		o.Logger = opts.Logger
	})

	return &AgentLoop{opts: opts, runner: r}, nil
}

// NewFromConfig builds an AgentLoop from a validated configuration: backends
// in the configured fallback order, durable SQLite stores when paths are set,
// the configured retry, memory and logging policies, and the knowledge base
// tool when one is configured. Additional tools are still supplied
// programmatically.
func NewFromConfig(cfg config.Config, optFns ...func(o *Options)) (*AgentLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := configOptions(cfg)
	if err != nil {
		return nil, err
	}
	return New(append([]func(o *Options){base}, optFns...)...)
}

// configOptions maps a validated configuration onto facade options.
func configOptions(cfg config.Config) (func(o *Options), error) {
	backends := make([]model.Backend, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		backends = append(backends, buildBackend(bc))
	}

	var checkpoints checkpoint.Store
	var err error
	if cfg.Checkpoint.Path != "" {
		checkpoints, err = sqlite.New(cfg.Checkpoint.Path)
		if err != nil {
			return nil, err
		}
	}

	var facts memory.FactStore
	if cfg.Memory.StorePath != "" {
		embedder := memory.NewOpenAIEmbedder(func(o *memory.EmbeddingOptions) {
			o.Model = cfg.Memory.EmbeddingModel
		})
		facts, err = sqlitevec.New(cfg.Memory.StorePath, embedder)
		if err != nil {
			return nil, err
		}
	}

	var tools []tool.Tool
	if cfg.KnowledgeBase.BaseURL != "" {
		tools = append(tools, tool.NewKnowledgeBaseTool(func(o *tool.KnowledgeBaseOptions) {
			o.BaseURL = cfg.KnowledgeBase.BaseURL
			o.ChatID = cfg.KnowledgeBase.ChatID
			o.APIKey = os.Getenv("RAGFLOW_API_KEY")
		}))
	}

	return func(o *Options) {
		o.SystemPrompt = cfg.SystemPrompt
		o.Backends = backends
		o.StartBackend = cfg.DefaultBackend()
		o.MaxAttempts = cfg.Retry.MaxAttempts
		o.RetryBaseDelay = cfg.Retry.BaseDelay
		o.RetryMaxDelay = cfg.Retry.MaxDelay
		o.TokenBudget = cfg.Memory.TokenBudget
		o.TokenEncoding = cfg.Memory.Encoding
		o.CheckpointStore = checkpoints
		o.FactStore = facts
		o.MemoryTopK = cfg.Memory.TopK
		o.MemoryUpdateWorkers = cfg.Memory.UpdateWorkers
		o.MemoryUpdateQueue = cfg.Memory.UpdateQueue
		o.Tools = tools
		o.MaxConcurrentTurns = cfg.Runner.MaxConcurrentTurns
		o.AcquireTimeout = cfg.Runner.AcquireTimeout
		o.Logger = logging.NewSlogLogger(cfg.LogLevel)
	}, nil
}

func buildBackend(bc config.BackendConfig) model.Backend {
	params := model.Params{
		MaxTokens:       bc.MaxTokens,
		Temperature:     bc.Temperature,
		ReasoningEffort: bc.ReasoningEffort,
	}
	switch bc.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			o.Name = bc.Name
			if bc.Model != "" {
				o.Model = anthropicsdk.Model(bc.Model)
			}
			applyParams(&o.Params, params)
		})
	case "mock":
		return model.NewMockBackend(bc.Name)
	default:
		return openai.New(func(o *openai.Options) {
			o.Name = bc.Name
			if bc.Model != "" {
				o.Model = bc.Model
			}
			applyParams(&o.Params, params)
		})
	}
}

func applyParams(dst *model.Params, src model.Params) {
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
	if src.Temperature > 0 {
		dst.Temperature = src.Temperature
	}
	if src.ReasoningEffort != "" {
		dst.ReasoningEffort = src.ReasoningEffort
	}
}

// Respond runs one synchronous turn and returns the new conversational
// messages.
func (a *AgentLoop) Respond(ctx context.Context, threadID, userID, input string) ([]core.Message, error) {
	return a.runner.Respond(ctx, threadID, userID, []core.Message{core.NewUserMessage(input)})
}

// RespondStream runs one turn and streams its output messages as fragments.
func (a *AgentLoop) RespondStream(ctx context.Context, threadID, userID, input string) <-chan runner.Fragment {
	return a.runner.RespondStream(ctx, threadID, userID, []core.Message{core.NewUserMessage(input)})
}

// History returns the full transcript of a thread.
func (a *AgentLoop) History(ctx context.Context, threadID string) ([]core.Message, error) {
	return a.runner.History(ctx, threadID)
}

// Close drains the background memory updater.
func (a *AgentLoop) Close() {
	a.runner.Close()
}
