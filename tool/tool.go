// Package tool implements the tool calling subsystem: the Tool interface the
// planner's actions are dispatched to, a schema validated FunctionTool adapter,
// the ToolError codes and the immutable Registry keyed by tool name.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/util"
)

// Tool defines a named capability the planner may request.
//
// Implementations must be safe for concurrent use: one Tool value serves every
// run in the process, and several calls of the same tool may execute in
// parallel within a single dispatch.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments. Returned errors are
	// tool-level failures and are reported back to the planner as text.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeExecution        = "EXECUTION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// IsValidationError reports whether err is a schema validation failure.
func IsValidationError(err error) bool {
	var te *ToolError
	if errors.As(err, &te) && te.Code == CodeValidation {
		return true
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}
