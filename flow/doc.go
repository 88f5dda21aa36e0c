// Package flow implements the per-turn state machine: a respond node that
// calls the model and a tool node that executes requested tool calls, cycling
// until the model produces a plain assistant message. Every executed node
// checkpoints the accumulated conversation state.
package flow
