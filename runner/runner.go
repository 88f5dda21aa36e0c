package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentloop/agentloop/checkpoint"
	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/flow"
	"github.com/agentloop/agentloop/internal/util"
	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/memory"
)

// noMemoryFound is injected when search yields nothing usable, so the model
// sees an explicit statement instead of an empty section.
const noMemoryFound = "no relevant memory found"

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentTurns limits turns executing at once. 0 means unlimited.
	MaxConcurrentTurns int
	// AcquireTimeout bounds the wait for a turn slot.
	AcquireTimeout time.Duration
	// Logger receives runner events.
	Logger logging.Logger
}

// Runner executes conversational turns: it restores thread state from the
// latest checkpoint, runs the turn graph, and schedules the background memory
// update. Public methods are safe for concurrent use; turns on the same
// thread are serialized.
type Runner struct {
	graph       *flow.Graph
	checkpoints checkpoint.Store
	memory      memory.Service
	updater     *memory.Updater
	limiter     *TurnLimiter
	locks       *threadLocks
	logger      logging.Logger
}

// New constructs a Runner.
func New(graph *flow.Graph, checkpoints checkpoint.Store, memorySvc memory.Service, updater *memory.Updater, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentTurns: 32,
		AcquireTimeout:     10 * time.Second,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		graph:       graph,
		checkpoints: checkpoints,
		memory:      memorySvc,
		updater:     updater,
		limiter:     NewTurnLimiter(opts.MaxConcurrentTurns, opts.AcquireTimeout),
		locks:       newThreadLocks(),
		logger:      opts.Logger,
	}
}

// Respond runs one turn for the thread and returns the new conversational
// messages the turn produced. The input messages are appended to the restored
// thread state before the turn graph runs.
func (r *Runner) Respond(ctx context.Context, threadID, userID string, messages []core.Message) ([]core.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("no input messages")
	}

	release, err := r.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	unlock := r.locks.Lock(threadID)
	defer unlock()

	state, err := r.restore(ctx, threadID)
	if err != nil {
		return nil, err
	}
	prevLen := len(state.Messages)
	state.Append(messages...)

	state.MemoryContext = r.searchMemory(ctx, userID, &state)

	runCtx := core.NewRunContext(ctx, threadID, userID, util.NewID(), r.logger)
	runCtx.LogInfo("runner.turn.start")

	final, err := r.graph.Run(runCtx, state)
	if err != nil {
		runCtx.LogError("runner.turn.failed", "error", err)
		return nil, err
	}

	r.updater.Enqueue(userID, final.Messages)

	delta := conversational(final.Messages[prevLen+len(messages):])
	runCtx.LogInfo("runner.turn.done", "messages", len(delta))
	return delta, nil
}

// Fragment is one streamed piece of a turn's output. The final fragment has
// Done set; a failed turn carries the error on its final fragment.
type Fragment struct {
	Content string
	Err     error
	Done    bool
}

// RespondStream runs the turn in the background and emits each new assistant
// message as a Fragment. The channel is closed after the Done fragment.
func (r *Runner) RespondStream(ctx context.Context, threadID, userID string, messages []core.Message) <-chan Fragment {
	out := make(chan Fragment, 8)
	go func() {
		defer close(out)

		delta, err := r.Respond(ctx, threadID, userID, messages)
		if err != nil {
			out <- Fragment{Err: err, Done: true}
			return
		}
		for _, msg := range delta {
			select {
			case out <- Fragment{Content: msg.Content}:
			case <-ctx.Done():
				out <- Fragment{Err: ctx.Err(), Done: true}
				return
			}
		}
		out <- Fragment{Done: true}
	}()
	return out
}

// History returns the full transcript of a thread. A thread with no
// checkpoints yields an empty history.
func (r *Runner) History(ctx context.Context, threadID string) ([]core.Message, error) {
	state, err := r.restore(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

// Close drains the background memory updater.
func (r *Runner) Close() {
	if r.updater != nil {
		r.updater.Close()
	}
}

// restore loads the latest checkpointed state for the thread. A missing
// checkpoint means a fresh thread; any other failure is fatal because
// responding from a stale transcript would corrupt the thread.
func (r *Runner) restore(ctx context.Context, threadID string) (core.ConversationState, error) {
	rec, err := r.checkpoints.Latest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return core.ConversationState{}, nil
	}
	if err != nil {
		return core.ConversationState{}, fmt.Errorf("restore thread %s: %w", threadID, err)
	}
	return rec.State.Clone(), nil
}

// searchMemory queries long-term memory for the turn. Search failures are
// logged and degrade to the not-found placeholder; memory must never block
// a turn.
func (r *Runner) searchMemory(ctx context.Context, userID string, state *core.ConversationState) string {
	query := state.LastUserMessage()
	if query == "" {
		return noMemoryFound
	}

	facts, err := r.memory.Search(ctx, userID, query)
	if err != nil {
		r.logger.Warn("runner.memory.search_failed", "user_id", userID, "error", err)
		return noMemoryFound
	}
	if len(facts) == 0 {
		return noMemoryFound
	}

	var sb strings.Builder
	for _, fact := range facts {
		sb.WriteString("- ")
		sb.WriteString(fact)
		sb.WriteString("\n")
	}
	return sb.String()
}

// conversational filters the delta down to non-empty user and assistant
// messages, dropping tool plumbing.
func conversational(messages []core.Message) []core.Message {
	out := make([]core.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.IsConversational() {
			out = append(out, msg)
		}
	}
	return out
}
