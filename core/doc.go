// Package core contains the shared primitives of the agent execution loop:
// conversation messages and roles, the append-only ConversationState with its
// StateDelta merge semantics, the per-turn RunContext, and the error taxonomy
// that governs retry, rotation and turn-abort decisions. Higher layers
// (dispatch, memory, flow, runner) depend on core and never on each other's
// internals.
package core
