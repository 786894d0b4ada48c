package core

import (
	"context"
	"time"

	"github.com/hupe1980/impromptu/logging"
)

// ToolContext provides a constrained surface for tool implementations: the
// invocation's context (deadline, cancellation, run metadata), the call id
// being answered and a logger pre-bound to both.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	toolName       string
	clock          Clock
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(ctx context.Context, functionCallID, toolName string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		toolName:       toolName,
		logger:         logging.With(logger, logging.KeyTool, toolName, logging.KeyCallID, functionCallID),
	}
}

// WithClock returns a copy of the context that reads time from clock.
func (tc *ToolContext) WithClock(clock Clock) *ToolContext {
	cp := *tc
	cp.clock = clock
	return &cp
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the logger bound to the tool name and call id.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// LogInfo logs through the bound logger.
func (tc *ToolContext) LogInfo(msg string, args ...any) { tc.logger.Info(msg, args...) }

// LogWarn logs through the bound logger.
func (tc *ToolContext) LogWarn(msg string, args ...any) { tc.logger.Warn(msg, args...) }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name of the invoked tool.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// RunInfo returns the run metadata attached to the invocation context.
func (tc *ToolContext) RunInfo() RunInfo { return RunInfoFrom(tc.ctx) }

// Now reads the invocation clock.
func (tc *ToolContext) Now() time.Time { return tc.clock.Now() }
