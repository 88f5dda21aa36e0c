package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentloop/agentloop/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the state machine.
// Tools travel with every request so that whichever backend handles it —
// including a fallback after rotation — receives the full tool set.
type Request struct {
	System   string           `json:"system"`
	Messages []core.Message   `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Params are the per-backend generation parameters fixed at startup.
type Params struct {
	MaxTokens       int64   `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty"`
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Backend is the minimal interface a model provider must implement. Invoke
// performs one blocking completion and returns a single assistant message,
// possibly carrying tool call requests. Implementations classify their
// failures by returning *core.BackendError so the dispatcher can decide
// between retry and rotation.
type Backend interface {
	Invoke(ctx context.Context, req Request) (core.Message, error)

	// Info returns information about the backend implementation.
	Info() Info
}

// ClassifyStatus maps an HTTP status code from a provider API onto the retry
// taxonomy: 429 and 5xx are transient, everything else is structural.
func ClassifyStatus(status int) core.ErrorClass {
	if status == 429 || status >= 500 {
		return core.ClassTransient
	}
	return core.ClassStructural
}

// ClassifyErr classifies provider errors that carry no usable status code by
// inspecting the message for network-level failure markers.
func ClassifyErr(err error) core.ErrorClass {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "rate limit", "overloaded"} {
		if strings.Contains(msg, marker) {
			return core.ClassTransient
		}
	}
	return core.ClassStructural
}

// MockBackend is a lightweight in-memory Backend useful for tests & examples.
// Responses are keyed by the latest user message; scripted errors are
// consumed in order before any canned response is served.
type MockBackend struct {
	mu        sync.Mutex
	info      Info
	responses map[string]core.Message
	errs      []error
	calls     int
}

// NewMockBackend constructs a MockBackend with the given name.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]core.Message),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockBackend) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = core.NewAssistantMessage(response)
}

// AddMessage registers a full canned message (e.g. one carrying tool calls).
func (m *MockBackend) AddMessage(prompt string, msg core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = msg
}

// FailWith queues errors returned by subsequent Invoke calls, in order.
func (m *MockBackend) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// Calls reports how many times Invoke ran.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Invoke implements Backend.
func (m *MockBackend) Invoke(_ context.Context, req Request) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return core.Message{}, err
	}

	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	if msg, ok := m.responses[prompt]; ok {
		return msg, nil
	}
	return core.NewAssistantMessage(fmt.Sprintf("Mock response to: %s", prompt)), nil
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }
