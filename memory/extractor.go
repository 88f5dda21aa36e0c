package memory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/model"
)

const extractorSystemPrompt = `You extract durable facts about the user from a conversation.
Return a JSON array of short, self-contained statements, e.g. ["The user lives in Berlin"].
Only include stable preferences, biographical details, and long-lived context.
Return [] if the conversation contains nothing worth remembering.`

// ModelCaller issues a single model call. *dispatch.Dispatcher satisfies it.
type ModelCaller interface {
	Call(ctx context.Context, req model.Request) (core.Message, error)
}

// FactExtractor turns a conversation into a list of durable fact statements
// using an auxiliary model call.
type FactExtractor struct {
	caller ModelCaller
	logger logging.Logger
}

// NewFactExtractor creates an extractor backed by the given caller.
func NewFactExtractor(caller ModelCaller, logger logging.Logger) *FactExtractor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &FactExtractor{caller: caller, logger: logger}
}

// Extract asks the model for a JSON array of fact statements. A response that
// cannot be parsed yields no facts rather than an error.
func (e *FactExtractor) Extract(ctx context.Context, messages []core.Message) ([]string, error) {
	var sb strings.Builder
	for _, msg := range messages {
		if !msg.IsConversational() {
			continue
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return nil, nil
	}

	resp, err := e.caller.Call(ctx, model.Request{
		System:   extractorSystemPrompt,
		Messages: []core.Message{core.NewUserMessage(sb.String())},
	})
	if err != nil {
		return nil, err
	}

	facts := parseFactList(resp.Content)
	if facts == nil {
		e.logger.Warn("memory.extract.unparseable", "content_len", len(resp.Content))
		return nil, nil
	}
	return facts, nil
}

// parseFactList parses a JSON string array, tolerating markdown code fences
// and surrounding prose. Returns nil when no array can be recovered.
func parseFactList(content string) []string {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var facts []string
	if err := json.Unmarshal([]byte(text), &facts); err == nil {
		return nonEmpty(facts)
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &facts); err == nil {
			return nonEmpty(facts)
		}
	}
	return nil
}

func nonEmpty(facts []string) []string {
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}
