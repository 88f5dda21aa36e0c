package core

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by a model backend.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction messages injected by the orchestration layer.
	RoleSystem Role = "system"
	// RoleTool marks tool execution results fed back to the model.
	RoleTool Role = "tool"
)

// ToolCall describes a tool invocation requested by a model backend.
// Arguments hold the serialized JSON payload exactly as produced by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is the unit of conversation shared between the user, model backends
// and tools. After creation it should be treated as immutable.
//
// ToolCalls is populated only on assistant messages that request tool
// execution. ToolCallID is populated only on tool messages and matches the
// ID of the originating ToolCall.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates an instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewToolResultMessage records the outcome of a tool call. The callID must
// match the ID of the ToolCall that requested the execution.
func NewToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// HasToolCalls reports whether the message carries at least one tool call request.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsConversational reports whether the message belongs in the public
// transcript: user or assistant role with non-empty content.
func (m Message) IsConversational() bool {
	return (m.Role == RoleUser || m.Role == RoleAssistant) && m.Content != ""
}
