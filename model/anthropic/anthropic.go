// Package anthropic implements model.Backend using the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/model"
)

// Options configure the Anthropic backend adapter (model id, generation
// params, API key). Extend via functional options to preserve stability.
type Options struct {
	Name   string
	Model  anthropic.Model
	Params model.Params
	APIKey string
}

// Backend wraps the Anthropic Messages API behind the generic model.Backend interface.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model: anthropic.ModelClaude3_5Sonnet20241022,
		Params: model.Params{
			MaxTokens:   4096,
			Temperature: 0.7,
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	if opts.Name == "" {
		opts.Name = string(opts.Model)
	}
	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model: anthropic.ModelClaude3_5Sonnet20241022,
		Params: model.Params{
			MaxTokens:   4096,
			Temperature: 0.7,
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Name == "" {
		opts.Name = string(opts.Model)
	}
	return &Backend{client: client, opts: opts}
}

// Invoke implements model.Backend.
func (b *Backend) Invoke(ctx context.Context, req model.Request) (core.Message, error) {
	params := anthropic.MessageNewParams{
		Model:       b.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   b.opts.Params.MaxTokens,
		Temperature: anthropic.Float(b.opts.Params.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, b.wrapErr(err)
	}

	out := core.Message{Role: core.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := json.RawMessage(nil)
			if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
				args = argsBytes
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// Info implements model.Backend.
func (b *Backend) Info() model.Info {
	return model.Info{Name: b.opts.Name, Provider: "anthropic"}
}

// buildMessages converts normalized messages to the Anthropic message format.
// Tool results become tool_result blocks inside user-role messages, as the
// Messages API requires.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			continue // handled via the top-level system field
		case core.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = string(tc.Arguments)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			if m.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return messages
}

// buildTools converts normalized tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tdef.Parameters != nil {
			if properties, exists := tdef.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tdef.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tdef.Name,
				Description: anthropic.String(tdef.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return anthropicTools
}

func (b *Backend) wrapErr(err error) error {
	class := model.ClassifyErr(err)
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		class = model.ClassifyStatus(apierr.StatusCode)
	}
	return &core.BackendError{
		Backend: b.opts.Name,
		Class:   class,
		Err:     fmt.Errorf("anthropic api error: %w", err),
	}
}
