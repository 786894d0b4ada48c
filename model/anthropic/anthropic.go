// Package anthropic provides a planner model backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	MaxRetries  int
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		Temperature: 0,
		MaxTokens:   4096,
		MaxRetries:  2,
	}
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate sends the conversation to the Messages API and emits the complete
// assistant reply as a single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if system := systemBlocks(req); len(system) > 0 {
			params.System = system
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var (
			text  string
			calls []core.FunctionCall
		)
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text += block.AsText().Text
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := "{}"
				if toolBlock.Input != nil {
					if b, err := json.Marshal(toolBlock.Input); err == nil && string(b) != "null" {
						args = string(b)
					}
				}
				calls = append(calls, core.FunctionCall{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: args,
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Message:      core.NewAssistantMessage(text, calls...),
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// buildMessages converts the conversation into Anthropic messages. Tool
// results travel as tool_result blocks inside a user message; consecutive
// results are merged into one message.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		results  []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			if fr, ok := msg.FunctionResponse(); ok {
				results = append(results, anthropic.NewToolResultBlock(fr.ID, fr.Content(), fr.Error != ""))
			}
		case core.RoleAssistant:
			flush()
			if content := assistantContent(msg); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			flush()
			if txt := msg.Text(); txt != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(txt)))
			}
		}
	}
	flush()

	return messages
}

func assistantContent(msg core.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if txt := msg.Text(); txt != "" {
		content = append(content, anthropic.NewTextBlock(txt))
	}
	for _, fc := range msg.FunctionCalls() {
		var input any = map[string]any{}
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
				input = map[string]any{}
			}
		}
		content = append(content, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
	}
	return content
}

func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range req.Messages {
		if msg.Role == core.RoleSystem && msg.Text() != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Text()})
		}
	}
	if len(blocks) == 0 && req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
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

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if out[i].OfTool != nil && tool.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
