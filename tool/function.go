package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/util"
	"github.com/hupe1980/impromptu/logging"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// The parameter schema is compiled once at construction and every Call
// validates its arguments before the function runs, so a schema violation
// never reaches a side effect. Errors are normalized to *ToolError:
//
//	validation failure              -> Code VALIDATION_ERROR
//	*ToolError returned by fn       -> forwarded unchanged
//	other error                     -> Code EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	schema      *util.Schema
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	echo, err := tool.NewFunctionTool(
//	  "askForDetails",
//	  "Ask the user a question",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "question": map[string]any{"type": "string", "minLength": 1},
//	    },
//	    "required": []string{"question"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["question"], nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) (*FunctionTool, error) {
	if name == "" {
		return nil, errors.New("tool name must not be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function must not be nil", name)
	}
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	schema, err := util.CompileSchema(name, parameters)
	if err != nil {
		return nil, err
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		schema:      schema,
		fn:          fn,
	}, nil
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) (*FunctionTool, error) {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Validate checks args against the compiled schema without executing the tool.
func (t *FunctionTool) Validate(args map[string]any) error {
	return t.schema.Validate(args)
}

// Call validates the provided args against the declared schema then invokes
// the underlying function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start")

	if err := t.schema.Validate(args); err != nil {
		logger.Warn("tool.call.validation_failed", logging.KeyError, err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Err:     err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", logging.KeyError, toolErr.Message, "code", toolErr.Code)

			return nil, toolErr
		}

		logger.Error("tool.call.error", logging.KeyError, err.Error())

		code := CodeExecution
		var ve *ValidationError
		if errors.As(err, &ve) {
			code = CodeValidation
		}

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    code,
			Err:     err,
		}
	}

	logger.Info("tool.call.success", logging.KeyDurationMS, time.Since(start).Milliseconds())

	return result, nil
}
