// Package openai implements model.Backend using the OpenAI Chat Completions
// API (including function/tool calling). It adapts the normalized
// Request/Message structures into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/model"
)

// Options configure the OpenAI backend adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Name   string
	Model  string
	Params model.Params
}

// Backend wraps the OpenAI Chat Completions API behind the generic
// model.Backend interface.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI backend using the official client. Credentials are
// taken from the environment (OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model: openai.ChatModelGPT4oMini,
		Params: model.Params{
			MaxTokens:   4096,
			Temperature: 0.7,
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Name == "" {
		opts.Name = opts.Model
	}
	return &Backend{client: client, opts: opts}
}

// Invoke implements model.Backend. Errors are wrapped in *core.BackendError
// with the retry classification derived from the API status code.
func (b *Backend) Invoke(ctx context.Context, req model.Request) (core.Message, error) {
	params := b.buildParams(req)

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Message{}, b.wrapErr(err)
	}
	if len(completion.Choices) == 0 {
		return core.Message{}, &core.BackendError{
			Backend: b.opts.Name,
			Class:   core.ClassTransient,
			Err:     fmt.Errorf("empty choices in completion %s", completion.ID),
		}
	}

	return convertMessage(completion.Choices[0].Message), nil
}

// Info implements model.Backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: b.opts.Name, Provider: "openai"}
}

func (b *Backend) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Params.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.Params.MaxTokens),
	}
	if b.opts.Params.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(b.opts.Params.ReasoningEffort)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  openai.FunctionParameters(tdef.Parameters),
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildMessages converts normalized messages into OpenAI chat messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		case core.RoleAssistant:
			if !m.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls},
			})
		}
	}
	return messages
}

// convertMessage maps a completion message back to the normalized form.
func convertMessage(msg openai.ChatCompletionMessage) core.Message {
	out := core.Message{Role: core.RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

func (b *Backend) wrapErr(err error) error {
	class := model.ClassifyErr(err)
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		class = model.ClassifyStatus(apierr.StatusCode)
	}
	return &core.BackendError{Backend: b.opts.Name, Class: class, Err: err}
}
