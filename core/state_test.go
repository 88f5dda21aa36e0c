package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationState_ApplyAppendsInOrder(t *testing.T) {
	state := ConversationState{}
	state.Apply(StateDelta{Messages: []Message{NewUserMessage("hi")}})
	state.Apply(StateDelta{Messages: []Message{NewAssistantMessage("hello"), NewUserMessage("how are you?")}})

	require.Len(t, state.Messages, 3)
	assert.Equal(t, RoleUser, state.Messages[0].Role)
	assert.Equal(t, RoleAssistant, state.Messages[1].Role)
	assert.Equal(t, "how are you?", state.Messages[2].Content)
}

func TestConversationState_ApplyIsPrefixPreserving(t *testing.T) {
	state := ConversationState{Messages: []Message{NewUserMessage("a"), NewAssistantMessage("b")}}
	before := state.Clone()

	state.Apply(StateDelta{Messages: []Message{NewUserMessage("c")}})

	require.Len(t, state.Messages, 3)
	assert.Equal(t, before.Messages, state.Messages[:2])
}

func TestConversationState_ApplyMemoryContext(t *testing.T) {
	state := ConversationState{MemoryContext: "old"}

	state.Apply(StateDelta{})
	assert.Equal(t, "old", state.MemoryContext, "nil context leaves state untouched")

	ctx := "new"
	state.Apply(StateDelta{MemoryContext: &ctx})
	assert.Equal(t, "new", state.MemoryContext)
}

func TestConversationState_CloneIsIndependent(t *testing.T) {
	state := ConversationState{Messages: []Message{NewUserMessage("a")}}
	clone := state.Clone()
	clone.Append(NewAssistantMessage("b"))

	assert.Len(t, state.Messages, 1)
	assert.Len(t, clone.Messages, 2)
}

func TestConversationState_LastUserMessage(t *testing.T) {
	state := ConversationState{}
	assert.Empty(t, state.LastUserMessage())

	state.Append(NewUserMessage("first"), NewAssistantMessage("reply"), NewUserMessage("second"), NewToolResultMessage("tc-1", "out"))
	assert.Equal(t, "second", state.LastUserMessage())
}

func TestMessage_IsConversational(t *testing.T) {
	assert.True(t, NewUserMessage("hi").IsConversational())
	assert.True(t, NewAssistantMessage("hello").IsConversational())
	assert.False(t, NewAssistantMessage("").IsConversational())
	assert.False(t, NewSystemMessage("prompt").IsConversational())
	assert.False(t, NewToolResultMessage("tc-1", "result").IsConversational())
}

func TestIsTransient(t *testing.T) {
	transient := &BackendError{Backend: "a", Class: ClassTransient, Err: errors.New("429")}
	structural := &BackendError{Backend: "a", Class: ClassStructural, Err: errors.New("401")}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(structural))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.True(t, IsTransient(&BackendError{Class: ClassTransient, Err: transient}))
}
