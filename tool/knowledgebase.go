package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentloop/agentloop/core"
)

// KnowledgeBaseOptions configure the RAGFlow-backed knowledge base tool.
type KnowledgeBaseOptions struct {
	BaseURL    string
	APIKey     string
	ChatID     string
	HTTPClient *http.Client
}

// KnowledgeBaseTool queries an external RAGFlow knowledge base through its
// OpenAI-compatible chat endpoint. Failures never surface as tool errors:
// misconfiguration, HTTP failures and malformed responses all degrade into
// explanatory result strings so the model can react in-conversation.
type KnowledgeBaseTool struct {
	opts KnowledgeBaseOptions
}

// NewKnowledgeBaseTool constructs the knowledge base tool.
func NewKnowledgeBaseTool(optFns ...func(o *KnowledgeBaseOptions)) *KnowledgeBaseTool {
	opts := KnowledgeBaseOptions{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &KnowledgeBaseTool{opts: opts}
}

// Name implements Tool.
func (t *KnowledgeBaseTool) Name() string { return "query_knowledge_base" }

// Description implements Tool.
func (t *KnowledgeBaseTool) Description() string {
	return "Searches the unified knowledge base for information related to the query. " +
		"Use this tool whenever you need to find factual information, documentation, " +
		"or specific domain knowledge that might be stored in the internal knowledge base."
}

// Parameters implements Tool.
func (t *KnowledgeBaseTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up in the knowledge base.",
			},
		},
		"required": []string{"query"},
	}
}

// Call implements Tool.
func (t *KnowledgeBaseTool) Call(runCtx *core.RunContext, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	runCtx.LogInfo("tool.knowledge_base.query", "query", query)

	if t.opts.APIKey == "" || t.opts.ChatID == "" {
		runCtx.LogWarn("tool.knowledge_base.not_configured",
			"api_key_set", t.opts.APIKey != "",
			"chat_id_set", t.opts.ChatID != "",
		)
		return "The knowledge base is not configured. Please provide an API key and chat ID.", nil
	}

	payload := map[string]any{
		"model": "ragflow",
		"messages": []map[string]string{
			{"role": "user", "content": query},
		},
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("An unexpected error occurred while querying the knowledge base: %v", err), nil
	}

	url := fmt.Sprintf("%s/chats_openai/%s/chat/completions", t.opts.BaseURL, t.opts.ChatID)
	req, err := http.NewRequestWithContext(runCtx.Context, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("An unexpected error occurred while querying the knowledge base: %v", err), nil
	}
	req.Header.Set("Authorization", "Bearer "+t.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		runCtx.LogError("tool.knowledge_base.request_failed", "error", err.Error())
		return fmt.Sprintf("Error communicating with the knowledge base: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		runCtx.LogError("tool.knowledge_base.api_error", "status_code", resp.StatusCode)
		return fmt.Sprintf("Error communicating with the knowledge base: unexpected status %d", resp.StatusCode), nil
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Sprintf("An unexpected error occurred while querying the knowledge base: %v", err), nil
	}
	if len(decoded.Choices) == 0 {
		return "No response from the knowledge base.", nil
	}

	runCtx.LogInfo("tool.knowledge_base.retrieval_successful", "query", query)
	return decoded.Choices[0].Message.Content, nil
}
