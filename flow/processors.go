package flow

import (
	"context"
	"errors"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/tool"
)

// InstructionsProcessor copies the system policy into Request.Instructions.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the instructions from the leading system message.
func (p *InstructionsProcessor) ProcessRequest(_ context.Context, conv *core.Conversation, req *model.Request) error {
	msgs := conv.Since(0)
	if len(msgs) == 0 || msgs[0].Role != core.RoleSystem {
		return errors.New("conversation has no system policy")
	}
	req.Instructions = msgs[0].Text()
	return nil
}

// ContentsProcessor copies the conversation into Request.Messages.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds the full message log to the request.
func (p *ContentsProcessor) ProcessRequest(_ context.Context, conv *core.Conversation, req *model.Request) error {
	req.Messages = conv.Messages()
	return nil
}

// ToolsProcessor exposes the registry as the model's action catalog.
type ToolsProcessor struct {
	registry *tool.Registry
}

// NewToolsProcessor creates a tools processor for registry.
func NewToolsProcessor(registry *tool.Registry) *ToolsProcessor {
	return &ToolsProcessor{registry: registry}
}

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest adds one function definition per registered tool.
func (p *ToolsProcessor) ProcessRequest(_ context.Context, _ *core.Conversation, req *model.Request) error {
	tools := p.registry.Tools()
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	req.Tools = defs
	return nil
}
