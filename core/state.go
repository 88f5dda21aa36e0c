package core

// ConversationState is the durable state of one conversation thread.
//
// Contract:
//   - Messages is append-only: deltas merge new messages onto the end,
//     preserving chronological order. Existing entries are never rewritten.
//   - MemoryContext holds the long-term memory context string injected for
//     the current turn; it is replaced, not accumulated.
type ConversationState struct {
	Messages      []Message `json:"messages"`
	MemoryContext string    `json:"long_term_memory_context"`
}

// StateDelta captures the changes one state-machine step wants to apply.
// A nil MemoryContext leaves the existing context untouched.
type StateDelta struct {
	Messages      []Message
	MemoryContext *string
}

// Apply merges the delta into the state: messages are appended in order and
// the memory context is replaced when set.
func (s *ConversationState) Apply(delta StateDelta) {
	s.Messages = append(s.Messages, delta.Messages...)
	if delta.MemoryContext != nil {
		s.MemoryContext = *delta.MemoryContext
	}
}

// Append adds messages to the end of the conversation.
func (s *ConversationState) Append(messages ...Message) {
	s.Messages = append(s.Messages, messages...)
}

// Clone returns a deep copy of the state safe for independent mutation.
func (s *ConversationState) Clone() ConversationState {
	clone := ConversationState{
		Messages:      make([]Message, len(s.Messages)),
		MemoryContext: s.MemoryContext,
	}
	copy(clone.Messages, s.Messages)
	return clone
}

// LastUserMessage returns the most recent user message content, or "" if the
// conversation holds none.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastMessage returns the final message, or a zero Message for an empty state.
func (s *ConversationState) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}
