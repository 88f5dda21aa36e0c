package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentloop/agentloop/checkpoint"
	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/memory"
	"github.com/agentloop/agentloop/model"
	"github.com/agentloop/agentloop/tool"
)

// State identifies a node of the turn graph.
type State string

const (
	// StateRespond asks the model for the next assistant message.
	StateRespond State = "respond"
	// StateToolCall executes the tool calls of the latest assistant message.
	StateToolCall State = "tool_call"
	// StateTerminal ends the turn.
	StateTerminal State = "terminal"
)

// Transition is the outcome of one node execution: the state delta it
// produced and the node to run next.
type Transition struct {
	Next  State
	Delta core.StateDelta
}

// Caller issues a model call. *dispatch.Dispatcher satisfies it.
type Caller interface {
	Call(ctx context.Context, req model.Request) (core.Message, error)
}

// Options configure a Graph.
type Options struct {
	// SystemPrompt is the base instruction prepended to every model call.
	SystemPrompt string
	// Logger receives node transition events.
	Logger logging.Logger
}

// Graph drives a single conversational turn through the
// respond -> tool_call -> respond cycle until the model stops requesting
// tools. After every executed node the accumulated state is checkpointed.
type Graph struct {
	caller      Caller
	registry    *tool.Registry
	trimmer     *memory.Trimmer
	checkpoints checkpoint.Store
	prompt      string
	logger      logging.Logger
}

// NewGraph wires the turn graph.
func NewGraph(caller Caller, registry *tool.Registry, trimmer *memory.Trimmer, checkpoints checkpoint.Store, optFns ...func(o *Options)) *Graph {
	opts := Options{
		SystemPrompt: "You are a helpful assistant.",
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Graph{
		caller:      caller,
		registry:    registry,
		trimmer:     trimmer,
		checkpoints: checkpoints,
		prompt:      opts.SystemPrompt,
		logger:      opts.Logger,
	}
}

// Run executes the turn to completion and returns the final state. Each node
// that executes appends one checkpoint record; a checkpoint write failure
// aborts the turn with a *core.CheckpointWriteError.
func (g *Graph) Run(runCtx *core.RunContext, state core.ConversationState) (core.ConversationState, error) {
	current := StateRespond
	for current != StateTerminal {
		if err := runCtx.Err(); err != nil {
			return state, err
		}

		var (
			transition Transition
			err        error
		)
		switch current {
		case StateRespond:
			transition, err = g.respond(runCtx, state)
		case StateToolCall:
			transition, err = g.executeTools(runCtx, state)
		default:
			return state, fmt.Errorf("unknown state %q", current)
		}
		if err != nil {
			return state, err
		}

		state.Apply(transition.Delta)
		if _, err := g.checkpoints.Append(runCtx.Context, runCtx.ThreadID, state); err != nil {
			return state, &core.CheckpointWriteError{ThreadID: runCtx.ThreadID, Err: err}
		}

		runCtx.LogDebug("flow.transition", "from", string(current), "to", string(transition.Next))
		current = transition.Next
	}
	return state, nil
}

// respond issues the model call for the current state.
func (g *Graph) respond(runCtx *core.RunContext, state core.ConversationState) (Transition, error) {
	system := g.prompt
	if state.MemoryContext != "" {
		system = system + "\n\nRelevant long-term memory:\n" + state.MemoryContext
	}

	req := model.Request{
		System:   system,
		Messages: g.trimmer.Trim(system, state.Messages),
		Tools:    g.registry.Definitions(),
	}

	msg, err := g.caller.Call(runCtx.Context, req)
	if err != nil {
		return Transition{}, err
	}

	next := StateTerminal
	if msg.HasToolCalls() {
		next = StateToolCall
	}
	return Transition{
		Next:  next,
		Delta: core.StateDelta{Messages: []core.Message{msg}},
	}, nil
}

// executeTools runs every tool call of the latest assistant message. Tool
// failures never abort the turn; they become tool result messages so the
// model can react to them.
func (g *Graph) executeTools(runCtx *core.RunContext, state core.ConversationState) (Transition, error) {
	last := state.LastMessage()
	if !last.HasToolCalls() {
		return Transition{Next: StateRespond}, nil
	}

	results := make([]core.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		results = append(results, core.NewToolResultMessage(call.ID, g.runTool(runCtx, call)))
	}
	return Transition{
		Next:  StateRespond,
		Delta: core.StateDelta{Messages: results},
	}, nil
}

func (g *Graph) runTool(runCtx *core.RunContext, call core.ToolCall) string {
	t, ok := g.registry.Get(call.Name)
	if !ok {
		runCtx.LogWarn("flow.tool.unknown", "tool", call.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments for tool %q: %v", call.Name, err)
		}
	}

	result, err := t.Call(runCtx, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return renderResult(result)
}

// renderResult flattens a tool result to text for the transcript.
func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return strings.TrimSpace(fmt.Sprintf("%v", v))
		}
		return string(data)
	}
}
